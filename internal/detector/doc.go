// Package detector finds quadrilateral barcode candidates in edge maps.
//
// ExtractContours labels 8-connected edge components and traces the outer
// boundary of each with Moore-neighbour tracing. SelectCandidates keeps the
// largest contours whose Douglas-Peucker approximation has exactly four
// vertices. CropCandidates cuts the padded candidate regions out of a frame
// so they can be decoded on their own.
package detector
