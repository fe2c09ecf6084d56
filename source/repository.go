package source

import (
	"github.com/kscale/go-bootconfig/bootcfg"
)

// Repository is a source a boot configuration can be fetched from.
// Implementations cache the last successfully fetched document and its
// raw bytes; Refresh replaces both atomically.
type Repository interface {
	GetName() string
	Refresh() error
	Document() *bootcfg.Document
	GetRawData() []byte
}
