package infra

import "sync"

var (
	sharedOnce  sync.Once
	sharedStore *Store
)

// Shared devolve o Store do processo. Ele vive fora de qualquer grafo de
// handlers, então sobrevive a reconstruções do roteador (ex.: reload via SIGHUP).
//
// As opções só valem na primeira chamada.
func Shared(opts ...StoreOption) *Store {
	sharedOnce.Do(func() {
		sharedStore = NewStore(opts...)
	})
	return sharedStore
}
