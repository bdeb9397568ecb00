// Package runner executes walks. Each walk gets one fresh session client;
// steps run through it in order and are graded from the client's error
// taxonomy, the step's expectations, its captures, and its database check.
//
// Setup commands run before the first step, teardown always runs, and
// wait_for polls the application between the two so setup can boot it
// asynchronously.
package runner
