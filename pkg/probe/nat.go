package probe

// NAT detection heuristics: none of these are conclusive on their own,
// but together they are the same signals traceroute tools have long used
// to flag likely network address translation along a path.

// IPIDMaxSequentialGap is the largest gap between two IPv4 identification
// values that is still treated as sequential (loss/reordering can open
// small gaps without NAT being involved).
const IPIDMaxSequentialGap = 100

// IPIDIsSequential reports whether id2 could plausibly be the next value
// after id1 from a single incrementing counter, accounting for uint16
// wraparound.
func IPIDIsSequential(id1, id2 uint16) bool {
	var diff uint16
	if id2 >= id1 {
		diff = id2 - id1
	} else {
		diff = (65535 - id1) + id2 + 1
	}
	return diff <= IPIDMaxSequentialGap
}

// DetectNATFromIPID analyzes a sequence of IPv4 identification values
// observed from the same address and reports whether their lack of
// sequentiality suggests a NAT device is rewriting them.
func DetectNATFromIPID(ipIDs []uint16) bool {
	if len(ipIDs) < 2 {
		return false
	}

	allZero := true
	for _, id := range ipIDs {
		if id != 0 {
			allZero = false
			break
		}
	}
	if allZero {
		return true
	}

	sequential := 0
	for i := 1; i < len(ipIDs); i++ {
		if IPIDIsSequential(ipIDs[i-1], ipIDs[i]) {
			sequential++
		}
	}
	ratio := float64(sequential) / float64(len(ipIDs)-1)
	return ratio < 0.5
}

// commonTTLDefaults are the initial TTL values operating systems and
// network equipment are known to send with.
var commonTTLDefaults = []int{32, 64, 128, 255}

// InferInitialTTL rounds an observed TTL up to the nearest common OS
// default, the nmap/p0f method for recovering the TTL a reply was
// originally sent with.
func InferInitialTTL(observedTTL int) int {
	if observedTTL <= 0 {
		return 0
	}
	for _, d := range commonTTLDefaults {
		if observedTTL <= d {
			return d
		}
	}
	return 255
}

// DetectNATFromTTL compares the forward hop count against the return
// path length inferred from the response TTL; a mismatch beyond a small
// tolerance for asymmetric routing suggests the reply did not travel the
// path its TTL implies, a common NAT/load-balancer symptom.
func DetectNATFromTTL(hopNumber, responseTTL int) bool {
	if hopNumber <= 0 || responseTTL <= 0 {
		return false
	}
	initial := InferInitialTTL(responseTTL)
	if initial == 0 {
		return false
	}
	returnHops := initial - responseTTL
	diff := returnHops - hopNumber
	if diff < 0 {
		diff = -diff
	}
	return diff > 5
}

// IsCGNATAddress reports whether an IPv4 address falls in the RFC 6598
// carrier-grade NAT shared space, 100.64.0.0/10.
func IsCGNATAddress(ipv4 [4]byte) bool {
	return ipv4[0] == 100 && ipv4[1]&0xc0 == 64
}
