// Package onnx is the fallback detection backend. It runs an ONNX export of
// GroundingDINO in-process through onnxruntime, for hosts where the
// inference service is not reachable.
//
// # Model Files
//
//   - Config: the model's Python config file. Only top-level scalar
//     assignments are read (text_encoder_type, max_text_len, num_queries).
//   - Checkpoint: an .onnx export of the same model.
//   - Vocabulary: the text encoder's WordPiece vocab.txt, found next to the
//     checkpoint unless given explicitly.
//
// # Export Signature
//
// Inputs are bound by name. The image input may be named img, image or
// samples and takes a [1,3,H,W] float32 tensor. Text inputs (input_ids,
// attention_mask, position_ids, token_type_ids, text_token_mask) are int64;
// ids are [1,L] and the token mask is [1,L,L]. Outputs logits/pred_logits
// ([1,Q,T]) and boxes/pred_boxes ([1,Q,4]) are read; any others are ignored.
//
// # Degradation
//
// The export gives no mapping from tokens back to prompt phrases, so kept
// boxes are labelled obj_0, obj_1, ... and the text threshold is not
// applied. Results are marked degraded.
package onnx
