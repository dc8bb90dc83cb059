// Package detection defines the open-vocabulary detection contract: the
// request and result types, the Backend/Model interfaces implemented by the
// inference-service client and the local ONNX fallback, backend selection,
// and the logit filtering used by the fallback.
//
// # Result Invariants
//
// A Result is an ordered list of detections. Each Detection carries its box,
// confidence, and phrase together, so the three can never fall out of step.
// NewResult enforces this when a backend returns them as parallel slices.
//
// # Box Convention
//
// Boxes are normalized (center x, center y, width, height), each a fraction
// of the image size in [0,1]. They are never pixel units; see
// imaging.PixelRect for conversion.
//
// # Degraded Results
//
// The fallback backend cannot attribute prompt phrases to boxes. Its results
// have Degraded set and placeholder phrases "obj_0", "obj_1", ... in output
// order. Callers should surface this rather than treat the labels as real.
package detection
