package ports

import (
	"context"

	"github.com/alejandrodnm/listinglab/internal/domain"
)

// ListingPublisher publica cambios de contenido en el listing en vivo.
type ListingPublisher interface {
	ApplyContentUpdate(ctx context.Context, update domain.ContentUpdate) error
}
