// Package csf implements compressed static functions: immutable maps from
// a fixed key set to uint64 values that store the values in close to
// their empirical entropy and do not store the keys.
//
// Values are replaced by prefix-free codewords from a codec (Huffman by
// default). Keys are hashed to 192-bit triples and split into chunks of
// about 1024 keys. Each chunk solves a GF(2) system in which every key
// owns three overlapping windows of bits whose XOR begins with the
// codeword of its value. A query hashes the key, reads three windows and
// decodes the result, so it costs a constant number of memory accesses.
//
// # Basic Usage
//
// Building a function:
//
//	f, err := csf.Build(ctx, slices.Values(keys), csf.Strings{},
//	    csf.WithValues(slices.Values(values)))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := f.WriteFile("colors.csf"); err != nil {
//	    log.Fatal(err)
//	}
//
// Querying a function:
//
//	f, err := csf.Open[string]("colors.csf", nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer f.Close()
//	fmt.Println(f.Get("red"))
//
// Keys outside the build set return arbitrary values.
//
// # Package Structure
//
//   - Public API: builder.go (Build), function.go (Get, NumBits), open.go (Open, Verify)
//   - Configuration: builder_options.go (BuildOption, With* functions), transform.go
//   - Construction: builder_parallel.go, chunk_solver.go, assembler.go
//   - Serialization: header.go (header, footer), writer.go
//   - Codecs: codec/ (Unary, Binary, Gamma, Huffman, length-limited Huffman)
//   - Key buffering: chunkstore/ (disk-backed, hash-bucketed)
//   - Internals: internal/triple (hashing), internal/solver (GF(2)), internal/bits
//   - Platform: mmap_linux.go, mmap_darwin.go, mmap_other.go (fallocate, prefault, madvise)
package csf
