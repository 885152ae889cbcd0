// Package client talks to the bundle server over HTTP.
//
// Upload streams the multipart body through a pipe, so files are read while
// the request is in flight and never buffered whole. Per-file outcomes come
// back as Results; a bundle the server refuses as a whole is a *ServerError,
// which matches ErrUnauthorized or ErrForbidden with errors.Is for 401 and
// 403. Transport failures wrap ErrUnavailable.
package client
