package domain

import (
	"encoding/json"
	"fmt"
)

// Content es el payload de una variante según el tipo de experimento.
// El conjunto es cerrado: solo los tipos de este archivo lo implementan.
type Content interface {
	// Kind es el tipo de experimento al que pertenece el content.
	Kind() ExperimentType
	isContent()
}

// TitleContent reemplaza el título del producto.
type TitleContent struct {
	Text string `json:"text" yaml:"text"`
}

// ImageContent reemplaza la imagen principal.
type ImageContent struct {
	URL string `json:"url" yaml:"url"`
}

// BulletPointsContent reemplaza la lista de bullet points.
type BulletPointsContent struct {
	Bullets []string `json:"bullets" yaml:"bullets"`
}

// APlusContent apunta a un bloque de contenido A+ ya subido al marketplace.
type APlusContent struct {
	ContentRef string `json:"content_ref" yaml:"content_ref"`
}

// MultivariateContent cambia varios elementos del listing a la vez.
type MultivariateContent struct {
	Title    string   `json:"title,omitempty" yaml:"title"`
	ImageURL string   `json:"image_url,omitempty" yaml:"image_url"`
	Bullets  []string `json:"bullets,omitempty" yaml:"bullets"`
}

func (TitleContent) Kind() ExperimentType        { return TypeTitle }
func (ImageContent) Kind() ExperimentType        { return TypeMainImage }
func (BulletPointsContent) Kind() ExperimentType { return TypeBulletPoints }
func (APlusContent) Kind() ExperimentType        { return TypeAPlusContent }
func (MultivariateContent) Kind() ExperimentType { return TypeMultivariate }

func (TitleContent) isContent()        {}
func (ImageContent) isContent()        {}
func (BulletPointsContent) isContent() {}
func (APlusContent) isContent()        {}
func (MultivariateContent) isContent() {}

// contentEnvelope es la forma persistida de un Content.
type contentEnvelope struct {
	Type  ExperimentType  `json:"type"`
	Value json.RawMessage `json:"value"`
}

// MarshalContent codifica c junto con su tipo.
func MarshalContent(c Content) ([]byte, error) {
	if c == nil {
		return nil, fmt.Errorf("domain.MarshalContent: nil content")
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("domain.MarshalContent: %w", err)
	}
	return json.Marshal(contentEnvelope{Type: c.Kind(), Value: raw})
}

// UnmarshalContent decodifica un valor producido por MarshalContent.
func UnmarshalContent(data []byte) (Content, error) {
	var env contentEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("domain.UnmarshalContent: envelope: %w", err)
	}
	c, err := DecodeContent(env.Type, func(v any) error { return json.Unmarshal(env.Value, v) })
	if err != nil {
		return nil, fmt.Errorf("domain.UnmarshalContent: %w", err)
	}
	return c, nil
}

// DecodeContent construye el Content de typ y deja que decode rellene el
// struct concreto. JSON y YAML comparten así el mismo type switch.
func DecodeContent(typ ExperimentType, decode func(any) error) (Content, error) {
	switch typ {
	case TypeTitle:
		var c TitleContent
		err := decode(&c)
		return c, wrapDecode(typ, err)
	case TypeMainImage:
		var c ImageContent
		err := decode(&c)
		return c, wrapDecode(typ, err)
	case TypeBulletPoints:
		var c BulletPointsContent
		err := decode(&c)
		return c, wrapDecode(typ, err)
	case TypeAPlusContent:
		var c APlusContent
		err := decode(&c)
		return c, wrapDecode(typ, err)
	case TypeMultivariate:
		var c MultivariateContent
		err := decode(&c)
		return c, wrapDecode(typ, err)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedExperimentType, typ)
	}
}

func wrapDecode(typ ExperimentType, err error) error {
	if err != nil {
		return fmt.Errorf("decode %s content: %w", typ, err)
	}
	return nil
}
