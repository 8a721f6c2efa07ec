package vectorindex

import "github.com/kailas-cloud/reqcheck/internal/domain"

// Key layout under the configured prefix:
//
//	<prefix>idx:<slot>:<gen>           FT index of one build
//	<prefix>chunk:<slot>:<gen>:<id>    chunk hash covered by that index
//	<prefix>idx:<slot>:current         name of the live index for the slot
//	<prefix>lock:<slot>                run-scoped slot lock
type keys struct {
	prefix string
}

func (k keys) indexName(slot domain.Source, gen string) string {
	return k.prefix + "idx:" + string(slot) + ":" + gen
}

func (k keys) chunkPrefix(slot domain.Source, gen string) string {
	return k.prefix + "chunk:" + string(slot) + ":" + gen + ":"
}

func (k keys) current(slot domain.Source) string {
	return k.prefix + "idx:" + string(slot) + ":current"
}

func (k keys) lock(slot domain.Source) string {
	return k.prefix + "lock:" + string(slot)
}
