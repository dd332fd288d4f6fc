package filter

import (
	"strconv"

	"github.com/cespare/xxhash/v2"

	"github.com/meridiangw/gateway/internal/gwcontext"
)

// GrayFilter sets ctx.Gray from the X-Gray header if present, otherwise from
// a deterministic per-client hash policy against the rule's configured
// rollout percentage.
type GrayFilter struct{}

// NewGrayFilter returns the gray_filter singleton.
func NewGrayFilter() *GrayFilter { return &GrayFilter{} }

func (f *GrayFilter) ID() string   { return "gray_filter" }
func (f *GrayFilter) Name() string { return "gray" }
func (f *GrayFilter) Order() int   { return OrderGray }

func (f *GrayFilter) DoFilter(ctx *gwcontext.GatewayContext) error {
	if h := ctx.Request.Headers.Get("X-Gray"); h != "" {
		if v, err := strconv.ParseBool(h); err == nil {
			ctx.Gray = v
			return nil
		}
	}

	grayPercentage := 0
	if ctx.Rule != nil {
		if fc, ok := ctx.Rule.FilterConfigByID(f.ID()); ok {
			grayPercentage = parseGrayPercentage(fc.Config)
		}
	}
	if grayPercentage <= 0 {
		ctx.Gray = false
		return nil
	}

	uniqueID := ctx.Request.UniqueID
	key := ctx.Request.ClientIP + ":" + uniqueID
	ctx.Gray = xxhash.Sum64String(key)%100 < uint64(grayPercentage)
	return nil
}

// parseGrayPercentage extracts {"grayPercentage": N} from the filter's
// opaque JSON config; malformed or absent config disables gray rollout.
func parseGrayPercentage(config string) int {
	var cfg struct {
		GrayPercentage int `json:"grayPercentage"`
	}
	if err := unmarshalJSON(config, &cfg); err != nil {
		return 0
	}
	return cfg.GrayPercentage
}
