package alts

// ElectMain returns the profile index of the group's main: the member with
// the earliest onboarding timestamp. Ties go to the member listed first; a
// group without any onboarding timestamp falls back to its first member.
func ElectMain(profiles []Profile, group Group, onboardingID int) int {
	main := -1
	var earliest int64
	for _, idx := range group {
		ts, ok := profiles[idx].Timestamp(onboardingID)
		if !ok {
			continue
		}
		if main < 0 || ts < earliest {
			main, earliest = idx, ts
		}
	}
	if main < 0 {
		return group[0]
	}
	return main
}
