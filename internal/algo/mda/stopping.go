package mda

import "math"

// StoppingThreshold computes k(n, alpha): the minimum number of
// distinct, pairwise-independent flows that must all map onto n known
// next-hops before MDA may declare, at confidence 1-alpha, that no
// (n+1)-th next-hop exists.
//
// Derivation (the Bernoulli-coverage bound the specification leaves
// unstated): if an undiscovered (n+1)-th hop exists, a perfectly
// load-balancing router sends each of the n+1 hops with probability
// 1/(n+1). By the union bound, the chance that k independent flows all
// miss that hop — landing only on the n known ones — is at most
// (n+1)*(n/(n+1))^k. StoppingThreshold returns the smallest k driving
// that bound to at most alpha, which reproduces the standard table at
// alpha=0.05: k(1)=6, k(2)=11, k(3)=16 (pinned as regression fixtures
// in stopping_test.go).
func StoppingThreshold(n int, alpha float64) int {
	if n < 1 {
		return 1
	}
	nf := float64(n)
	bound := nf / (nf + 1)
	for k := 1; ; k++ {
		if (nf+1)*math.Pow(bound, float64(k)) <= alpha {
			return k
		}
	}
}
