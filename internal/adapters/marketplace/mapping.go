package marketplace

import (
	"fmt"

	"github.com/alejandrodnm/listinglab/internal/domain"
)

// experimentTypes es el vocabulario del provider para cada tipo de experimento.
var experimentTypes = map[domain.ExperimentType]string{
	domain.TypeTitle:        "PRODUCT_TITLE",
	domain.TypeMainImage:    "MAIN_IMAGE",
	domain.TypeBulletPoints: "BULLET_POINTS",
	domain.TypeAPlusContent: "A_PLUS_CONTENT",
	domain.TypeMultivariate: "MULTI_ATTRIBUTE",
}

func providerType(t domain.ExperimentType) (string, error) {
	v, ok := experimentTypes[t]
	if !ok {
		return "", fmt.Errorf("%w: %q", domain.ErrUnsupportedExperimentType, t)
	}
	return v, nil
}

// mapContent convierte el content de una variante al payload del provider.
func mapContent(c domain.Content) (contentPayload, error) {
	switch v := c.(type) {
	case domain.TitleContent:
		return contentPayload{Title: v.Text}, nil
	case domain.ImageContent:
		return contentPayload{MainImageURL: v.URL}, nil
	case domain.BulletPointsContent:
		return contentPayload{BulletPoints: v.Bullets}, nil
	case domain.APlusContent:
		return contentPayload{APlusContentRef: v.ContentRef}, nil
	case domain.MultivariateContent:
		return contentPayload{Title: v.Title, MainImageURL: v.ImageURL, BulletPoints: v.Bullets}, nil
	case nil:
		return contentPayload{}, fmt.Errorf("missing content")
	default:
		return contentPayload{}, fmt.Errorf("%w: content %T", domain.ErrUnsupportedExperimentType, c)
	}
}

// mapCreateRequest convierte una petición de provisioning al body de la API.
func mapCreateRequest(req domain.ProvisionRequest) (createExperimentRequest, error) {
	typ, err := providerType(req.Type)
	if err != nil {
		return createExperimentRequest{}, err
	}

	out := createExperimentRequest{
		ClientReference: req.ExperimentID,
		Name:            req.Name,
		Description:     req.Description,
		ProductID:       req.ProductRef,
		MarketplaceID:   req.Marketplace,
		ExperimentType:  typ,
		PrimaryMetric:   string(req.PrimaryMetric),
		DurationDays:    req.DurationDays,
		Treatments:      make([]treatmentRequest, 0, len(req.Variants)),
	}
	for _, v := range req.Variants {
		payload, err := mapContent(v.Content)
		if err != nil {
			return createExperimentRequest{}, fmt.Errorf("variant %s: %w", v.ID, err)
		}
		out.Treatments = append(out.Treatments, treatmentRequest{
			ClientReference:   v.ID,
			Name:              v.Name,
			TrafficPercentage: v.TrafficPercentage,
			Content:           payload,
		})
	}
	return out, nil
}

// mapMetrics convierte las stats de cada treatment a métricas de dominio por id local.
// Las stats sin client reference no se pueden emparejar y se descartan.
func mapMetrics(raw []treatmentStat) []domain.VariantMetrics {
	out := make([]domain.VariantMetrics, 0, len(raw))
	for _, t := range raw {
		if t.ClientReference == "" {
			continue
		}
		out = append(out, domain.VariantMetrics{
			VariantID:   t.ClientReference,
			Impressions: t.Impressions,
			Clicks:      t.Clicks,
			Conversions: t.Orders,
			Revenue:     t.Sales,
		})
	}
	return out
}

// attributeValue es el valor localizado de un atributo del listing.
type attributeValue struct {
	Value         any    `json:"value"`
	MarketplaceID string `json:"marketplace_id"`
}

// mapListingPatches convierte un content update en patches del listing.
// Solo se puede publicar content de un único elemento.
func mapListingPatches(u domain.ContentUpdate) ([]patchEntry, error) {
	if u.Content == nil {
		return nil, fmt.Errorf("missing content")
	}
	if u.Content.Kind() != u.Type {
		return nil, fmt.Errorf("content %s does not match type %s", u.Content.Kind(), u.Type)
	}

	replace := func(attr string, value any) []patchEntry {
		return []patchEntry{{
			Op:    "replace",
			Path:  "/attributes/" + attr,
			Value: []attributeValue{{Value: value, MarketplaceID: u.Marketplace}},
		}}
	}

	switch v := u.Content.(type) {
	case domain.TitleContent:
		return replace("item_name", v.Text), nil
	case domain.ImageContent:
		return replace("main_product_image_locator", v.URL), nil
	case domain.APlusContent:
		return replace("a_plus_content_reference", v.ContentRef), nil
	case domain.BulletPointsContent:
		values := make([]attributeValue, 0, len(v.Bullets))
		for _, b := range v.Bullets {
			values = append(values, attributeValue{Value: b, MarketplaceID: u.Marketplace})
		}
		return []patchEntry{{Op: "replace", Path: "/attributes/bullet_point", Value: values}}, nil
	case domain.MultivariateContent:
		return nil, fmt.Errorf("%w: %s cannot be published as one listing update", domain.ErrUnsupportedExperimentType, u.Type)
	default:
		return nil, fmt.Errorf("%w: content %T", domain.ErrUnsupportedExperimentType, u.Content)
	}
}
