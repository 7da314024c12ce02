// Package main provides the image-redactor command line tool.
//
// Usage:
//
//	image-redactor redact --in shot.png --box 0.1,0.2,0.3,0.08
//	image-redactor redact --in https://example.com/a.png --script drag.yaml --out out.png
//	image-redactor init-config
package main

func main() {
	Execute()
}
