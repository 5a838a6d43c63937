// Package preprocess turns raw camera frames into images a barcode decoder
// can read and into binary edge maps for contour extraction.
//
// Every operation is pure: inputs are never modified and each call returns a
// freshly allocated image. Single-channel frames are *image.Gray; edge maps
// are *EdgeMap whose pixels are either 0 or 255.
package preprocess
