// Package imaging loads, preprocesses, annotates, and saves the single image
// a detection run works on.
//
// # Coordinate System
//
// Detector boxes arrive in normalized coordinates: four fractions of the
// image size in (center x, center y, width, height) order. Pixel coordinates
// are 0-based with (0,0) at the top-left corner, X increasing rightward and Y
// increasing downward. Conversion to pixels truncates toward zero and clamps
// to the image bounds.
//
// # Preprocessing
//
// The model-ready representation is a CHW float32 tensor. The image is
// resized so its shorter side is 800 pixels unless that would push the longer
// side past 1333, then scaled to [0,1] and normalized per channel with the
// ImageNet mean (0.485, 0.456, 0.406) and standard deviation
// (0.229, 0.224, 0.225). These constants are fixed; they must match the
// inference service's own preprocessing.
//
// # Annotation Styles
//
// Two drawing styles exist:
//   - PaletteStyle: one colour per distinct phrase, label "<phrase> <score>"
//     on a filled background. Used with real phrase attribution.
//   - PlainStyle: fixed green boxes and plain green labels 10 pixels above
//     the box. Used with placeholder labels.
//
// # Error Handling
//
// Functions return errors for unreadable or undecodable files and for
// encode/write failures. Drawing never fails; out-of-bounds boxes are clipped.
package imaging
