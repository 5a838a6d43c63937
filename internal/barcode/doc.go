// Package barcode defines the decoder contract used by the scanning
// pipeline and a pure-Go implementation backed by gozxing.
//
// A Decoder turns one image into zero or more RawDetection values. Payloads
// may be absent; geometry is reported in the pixel coordinates of the image
// that was decoded.
package barcode
