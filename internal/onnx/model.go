package onnx

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/ironsheep/grounding-detect/internal/detection"
	"github.com/ironsheep/grounding-detect/internal/imaging"
)

// Input names accepted from the export. The image input may use any of the
// aliases.
var (
	imageInputs = []string{"img", "image", "samples"}
	textInputs  = []string{"input_ids", "attention_mask", "position_ids", "token_type_ids", "text_token_mask", "text_self_attention_masks"}

	logitOutputs = []string{"logits", "pred_logits"}
	boxOutputs   = []string{"boxes", "pred_boxes"}
)

// binding maps the export's declared names to the values we supply.
type binding struct {
	inputs []string
	logits string
	boxes  string
}

func (b *binding) outputs() []string { return []string{b.logits, b.boxes} }

func bindNames(inputs, outputs []string) (*binding, error) {
	b := &binding{}
	hasImage, hasIDs := false, false
	for _, name := range inputs {
		switch {
		case contains(imageInputs, name):
			hasImage = true
		case contains(textInputs, name):
			hasIDs = hasIDs || name == "input_ids"
		default:
			return nil, fmt.Errorf("model has unsupported input %q", name)
		}
		b.inputs = append(b.inputs, name)
	}
	if !hasImage || !hasIDs {
		return nil, fmt.Errorf("model inputs %v must include an image and input_ids", inputs)
	}

	for _, name := range outputs {
		switch {
		case b.logits == "" && contains(logitOutputs, name):
			b.logits = name
		case b.boxes == "" && contains(boxOutputs, name):
			b.boxes = name
		}
	}
	if b.logits == "" || b.boxes == "" {
		return nil, fmt.Errorf("model outputs %v must include logits and boxes", outputs)
	}
	return b, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// model is a loaded onnxruntime session.
type model struct {
	session *ort.DynamicAdvancedSession
	bind    *binding
	cfg     *ModelConfig
	tok     *Tokenizer
	special map[int64]bool
	log     logrus.FieldLogger
}

// LoadImage decodes the image and applies the fixed resize/normalize policy.
func (m *model) LoadImage(_ context.Context, path string) (*detection.PreparedImage, error) {
	src, err := imaging.Load(path)
	if err != nil {
		return nil, err
	}
	tensor, err := imaging.Preprocess(src)
	if err != nil {
		return nil, err
	}
	return &detection.PreparedImage{Path: path, Source: src, Tensor: tensor}, nil
}

// Predict runs the forward pass and keeps boxes whose best token score is
// above q.BoxThreshold. q.TextThreshold has no effect: the export yields no
// token-to-phrase mapping, so phrases are placeholders.
func (m *model) Predict(ctx context.Context, img *detection.PreparedImage, q detection.Query) (*detection.Result, error) {
	if img.Tensor == nil {
		return nil, errNoImage
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	caption := normalizeCaption(q.Caption)
	ids := m.tok.Encode(caption)
	text := BuildTextInputs(ids, m.special, m.cfg.MaxTextLen)
	m.log.WithFields(logrus.Fields{
		"tokens":  m.tok.Tokens(text.InputIDs),
		"caption": caption,
	}).Debug("caption encoded")

	inputs := make([]ort.Value, 0, len(m.bind.inputs))
	defer func() { destroyAll(inputs, m.log) }()
	for _, name := range m.bind.inputs {
		v, err := newInput(name, img.Tensor, text)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, v)
	}

	outputs := make([]ort.Value, 2)
	if err := m.session.Run(inputs, outputs); err != nil {
		return nil, fmt.Errorf("forward pass failed: %w", err)
	}
	defer func() { destroyAll(outputs, m.log) }()

	logits, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected %s output type %T", m.bind.logits, outputs[0])
	}
	boxes, ok := outputs[1].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected %s output type %T", m.bind.boxes, outputs[1])
	}
	checkQueries(m.cfg.NumQueries, logits.GetShape(), m.log)
	return decodeOutputs(logits.GetData(), logits.GetShape(), boxes.GetData(), boxes.GetShape(), q.BoxThreshold)
}

// checkQueries warns when the exported model's query count differs from
// num_queries in the config, which usually means the config and checkpoint
// do not belong together. It reports whether they match.
func checkQueries(want int, lshape ort.Shape, log logrus.FieldLogger) bool {
	if len(lshape) < 2 || lshape[1] == int64(want) {
		return true
	}
	log.WithFields(logrus.Fields{
		"num_queries": want,
		"model":       lshape[1],
	}).Warn("model query count differs from config")
	return false
}

// normalizeCaption lowercases and ensures the caption ends with ".", as the
// model was trained on.
func normalizeCaption(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if !strings.HasSuffix(s, ".") {
		s += " ."
	}
	return s
}

func newInput(name string, img *imaging.Tensor, text *TextInputs) (ort.Value, error) {
	l := int64(text.Len())
	var (
		v   ort.Value
		err error
	)
	switch name {
	case "input_ids":
		v, err = ort.NewTensor(ort.NewShape(1, l), text.InputIDs)
	case "attention_mask":
		v, err = ort.NewTensor(ort.NewShape(1, l), text.AttentionMask)
	case "position_ids":
		v, err = ort.NewTensor(ort.NewShape(1, l), text.PositionIDs)
	case "token_type_ids":
		v, err = ort.NewTensor(ort.NewShape(1, l), text.TokenTypeIDs)
	case "text_token_mask", "text_self_attention_masks":
		v, err = ort.NewTensor(ort.NewShape(1, l, l), text.TextTokenMask)
	default:
		v, err = ort.NewTensor(ort.NewShape(img.Shape()...), img.Data)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s tensor: %w", name, err)
	}
	return v, nil
}

// decodeOutputs validates the output shapes ([1,Q,T] logits, [1,Q,4] boxes)
// and filters by threshold.
func decodeOutputs(logits []float32, lshape ort.Shape, boxes []float32, bshape ort.Shape, threshold float64) (*detection.Result, error) {
	if len(lshape) != 3 || lshape[0] != 1 {
		return nil, fmt.Errorf("unexpected logits shape %v", lshape)
	}
	if len(bshape) != 3 || bshape[0] != 1 || bshape[2] != 4 || bshape[1] != lshape[1] {
		return nil, fmt.Errorf("unexpected boxes shape %v for logits %v", bshape, lshape)
	}
	q := int(bshape[1])
	if len(boxes) != q*4 {
		return nil, fmt.Errorf("boxes data has %d values, want %d", len(boxes), q*4)
	}

	out := make([]detection.Box, q)
	for i := range out {
		b := boxes[i*4 : i*4+4]
		out[i] = detection.Box{float64(b[0]), float64(b[1]), float64(b[2]), float64(b[3])}
	}
	return detection.FilterLogits(logits, int(lshape[2]), out, threshold)
}

func destroyAll(values []ort.Value, log logrus.FieldLogger) {
	for _, v := range values {
		if v == nil {
			continue
		}
		if err := v.Destroy(); err != nil {
			log.WithError(err).Warn("failed to destroy tensor")
		}
	}
}

// Style implements detection.Model. Placeholder phrases get the plain
// fixed-colour style.
func (m *model) Style() imaging.Style { return imaging.PlainStyle }

// Close destroys the session. The runtime environment stays initialized for
// the life of the process.
func (m *model) Close() error {
	if m.session == nil {
		return nil
	}
	err := m.session.Destroy()
	m.session = nil
	if err != nil {
		return fmt.Errorf("failed to destroy session: %w", err)
	}
	return nil
}
