package utils

import (
	"crypto/rand"
	"math"
	"math/big"
	"time"
)

func randInt() int {
	seed, _ := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
	return int(seed.Int64())
}

// Wait returns the delay before the i-th retry: i squared seconds plus up
// to nine seconds of jitter.
func Wait(i int) time.Duration {
	sleep := math.Pow(float64(i), 2) + float64(randInt()%10)
	return time.Duration(sleep) * time.Second
}
