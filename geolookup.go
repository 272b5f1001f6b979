package mailAuth

import (
	"context"

	"github.com/Sreyas108/mailAuth/geo"
)

// IPAPILookup adapts [geo.Client] to the [GeoLookup] interface.
type IPAPILookup struct {
	Client *geo.Client
}

// NewIPAPILookup wraps a default [geo.Client].
func NewIPAPILookup(opts ...geo.Option) IPAPILookup {
	return IPAPILookup{Client: geo.NewClient(opts...)}
}

func (l IPAPILookup) Resolve(ctx context.Context, ip string) (GeoResult, error) {
	result, err := l.Client.Lookup(ctx, ip)
	if err != nil {
		return GeoResult{}, err
	}
	return GeoResult{
		IP:       result.IP,
		Location: result.Location,
	}, nil
}
