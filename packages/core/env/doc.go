// Package env supplies the variable side of walk execution.
//
// It provides:
//   - named environments (base URL plus variables) from the config file
//   - .env file loading for {{$VAR}} references
//   - {{variable}} interpolation over walk strings, including captures
//     from earlier steps and built-in function calls
package env
