package lottery

// DefaultThreshold is the number of newly read articles that earns one entry.
const DefaultThreshold = 5

// Unclaimed returns how many reads are not yet spent on a redemption.
func Unclaimed(readCount, redeemCount, threshold int) int {
	return readCount - redeemCount*threshold
}

// Eligible reports whether an unclaimed entry is available for the given counts.
func Eligible(readCount, redeemCount, threshold int) bool {
	return Unclaimed(readCount, redeemCount, threshold) >= threshold
}

// CheckEligibility is true iff len(readSlugs) - redeemCount*threshold >= threshold.
func CheckEligibility(readSlugs []string, redeemCount, threshold int) bool {
	return Eligible(len(readSlugs), redeemCount, threshold)
}
