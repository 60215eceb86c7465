package minigame

import (
	"hash/fnv"
	"math/rand/v2"
	"strings"
)

// SeedFrom reduz uma lista de partes textuais a um seed numérico estável.
// É o equivalente de semear um gerador com a string "seed-tick-a-b": o mesmo
// conjunto de partes produz sempre o mesmo seed, em qualquer máquina.
func SeedFrom(parts ...string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(strings.Join(parts, "-")))
	return h.Sum64()
}

// NewRand cria um gerador PCG determinístico a partir de um seed numérico.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}
