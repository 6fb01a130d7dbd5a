package marketplace

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/alejandrodnm/listinglab/internal/domain"
)

const listingsPath = "/listings"

// ApplyContentUpdate reemplaza el elemento del listing que lleva u.
// Si la API responde INVALID se devuelve como error.
func (c *Client) ApplyContentUpdate(ctx context.Context, u domain.ContentUpdate) error {
	patches, err := mapListingPatches(u)
	if err != nil {
		return fmt.Errorf("marketplace.ApplyContentUpdate %s: %w", u.SKU, err)
	}

	q := url.Values{}
	q.Set("marketplace_id", u.Marketplace)
	endpoint := fmt.Sprintf("%s%s/%s?%s", c.baseURL, listingsPath, url.PathEscape(u.SKU), q.Encode())

	var resp listingPatchResponse
	body := listingPatchRequest{ProductID: u.ProductRef, Patches: patches}
	if err := c.patch(ctx, c.listingsLimiter, endpoint, body, &resp); err != nil {
		return fmt.Errorf("marketplace.ApplyContentUpdate %s: %w", u.SKU, err)
	}

	if strings.EqualFold(resp.Status, "INVALID") {
		msgs := make([]string, 0, len(resp.Issues))
		for _, is := range resp.Issues {
			msgs = append(msgs, is.Code+": "+is.Message)
		}
		return fmt.Errorf("marketplace.ApplyContentUpdate %s: listing rejected: %s", u.SKU, strings.Join(msgs, "; "))
	}

	slog.Info("listing updated",
		"sku", u.SKU,
		"product_ref", u.ProductRef,
		"type", u.Type,
		"submission_id", resp.SubmissionID,
	)
	return nil
}
