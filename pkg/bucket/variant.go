package bucket

// Weighted is a selectable option with a relative weight.
type Weighted struct {
	Key    string
	Weight int
}

// SelectVariant returns the key of the variant whose cumulative range contains
// the bucket of identifier and salt.
//
// Weights are relative and normalised over [0,100). Options with a weight of
// zero or less are never selected. The last positive option always closes the
// range at 100, so rounding can never leave a bucket unassigned.
func SelectVariant(identifier, salt string, variants []Weighted) (string, error) {
	if len(variants) == 0 {
		return "", ErrNoVariants
	}

	total, last := 0, -1
	for i, v := range variants {
		if v.Weight > 0 {
			total += v.Weight
			last = i
		}
	}
	if total == 0 {
		return "", ErrInvalidWeights
	}

	b := float64(Bucket(identifier, salt))
	cumulative := 0
	for i, v := range variants {
		if v.Weight <= 0 {
			continue
		}
		if i == last {
			return v.Key, nil
		}
		cumulative += v.Weight
		if b < float64(cumulative)*Buckets/float64(total) {
			return v.Key, nil
		}
	}

	return variants[last].Key, nil
}
