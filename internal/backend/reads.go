package backend

import (
	"context"

	"github.com/medihope/portal/internal/domain/donor"
	"github.com/medihope/portal/internal/domain/medicine"
	"github.com/medihope/portal/internal/domain/needy"
)

// FetchMedicines lists every donated medicine.
func (c *Client) FetchMedicines(ctx context.Context) []medicine.Record {
	return fetchList[medicine.Record](ctx, c, PathMedicines, pickData)
}

// FetchDonors lists every donor profile.
func (c *Client) FetchDonors(ctx context.Context) []donor.Record {
	return fetchList[donor.Record](ctx, c, PathDonors, pickData)
}

// FetchAllNeedy lists every needy profile.
func (c *Client) FetchAllNeedy(ctx context.Context) []needy.Record {
	return fetchList[needy.Record](ctx, c, PathNeedyAll, pickObj)
}

// FetchDonor loads one donor by email. A nil record comes with the
// server's message.
func (c *Client) FetchDonor(ctx context.Context, email string) (*donor.Record, string, error) {
	return fetchOne[donor.Record](ctx, c, PathDonors, email)
}

// FetchNeedy loads one needy profile by id or email.
func (c *Client) FetchNeedy(ctx context.Context, idOrEmail string) (*needy.Record, string, error) {
	return fetchOne[needy.Record](ctx, c, PathNeedy, idOrEmail)
}
