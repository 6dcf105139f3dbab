package model

// GetOptions carries the cursor options of a store read. Nil members are
// left to the store's defaults.
type GetOptions struct {
	Sort          string
	SortDirection int
	Skip          *int64
	Limit         *int64
	NoLimit       bool
}

// WithLimit returns options limited to n results.
func (o GetOptions) WithLimit(n int64) *GetOptions {
	o.Limit = &n
	return &o
}
