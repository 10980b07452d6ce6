package csf

import "github.com/tamirms/csf/internal/triple"

// Hash returns the hash triple of an already transformed key under seed.
//
// Use it to hash keys outside the builder, for instance on other machines,
// and feed the triples to a chunkstore.Store with AddHash:
//
//	store, _ := chunkstore.New(dir, seed)
//	for key, value := range pairs {
//	    store.AddHash(csf.Hash(key, seed), value)
//	}
//	f, err := csf.Build[[]byte](ctx, nil, csf.Bytes{}, csf.WithStore(store))
//
// Queries on such a function can skip hashing too:
//
//	v := f.GetHash(csf.Hash(key, f.GlobalSeed()))
func Hash(key []byte, seed uint64) [3]uint64 {
	return triple.Hash(key, seed)
}

// GlobalSeed returns the seed keys are hashed with.
func (f *Function[K]) GlobalSeed() uint64 {
	return f.globalSeed
}
