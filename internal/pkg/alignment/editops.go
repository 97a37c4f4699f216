package alignment

import "github.com/airenas/tarimas/internal/pkg/persistence"

const (
	costInsert     = 1
	costDelete     = 1
	costSubstitute = 2
)

// EditOperations computes the weighted edit path from what was said (actual) to
// what should be said (target). Insert and substitute positions index actual,
// delete positions index target.
func EditOperations(actual, target []string) []persistence.ErrorOperation {
	m, n := len(actual), len(target)
	dp := make([][]int, m+1)
	for i := range dp {
		dp[i] = make([]int, n+1)
		dp[i][0] = i * costInsert
	}
	for j := 0; j <= n; j++ {
		dp[0][j] = j * costDelete
	}
	for i := 1; i <= m; i++ {
		for j := 1; j <= n; j++ {
			if actual[i-1] == target[j-1] {
				dp[i][j] = dp[i-1][j-1]
				continue
			}
			dp[i][j] = min3(dp[i-1][j]+costInsert, dp[i][j-1]+costDelete, dp[i-1][j-1]+costSubstitute)
		}
	}

	var res []persistence.ErrorOperation
	i, j := m, n
	for i > 0 || j > 0 {
		switch {
		case i > 0 && j > 0 && actual[i-1] == target[j-1]:
			i--
			j--
		case i > 0 && j > 0 && dp[i][j] == dp[i-1][j-1]+costSubstitute:
			res = append(res, persistence.ErrorOperation{Type: persistence.ErrSubstitute, Position: i - 1,
				Expected: strPtr(target[j-1]), Actual: strPtr(actual[i-1])})
			i--
			j--
		case i > 0 && dp[i][j] == dp[i-1][j]+costInsert:
			res = append(res, persistence.ErrorOperation{Type: persistence.ErrInsert, Position: i - 1, Actual: strPtr(actual[i-1])})
			i--
		case j > 0 && dp[i][j] == dp[i][j-1]+costDelete:
			res = append(res, persistence.ErrorOperation{Type: persistence.ErrDelete, Position: j - 1, Expected: strPtr(target[j-1])})
			j--
		case i > 0:
			res = append(res, persistence.ErrorOperation{Type: persistence.ErrInsert, Position: i - 1, Actual: strPtr(actual[i-1])})
			i--
		default:
			res = append(res, persistence.ErrorOperation{Type: persistence.ErrDelete, Position: j - 1, Expected: strPtr(target[j-1])})
			j--
		}
	}
	for l, r := 0, len(res)-1; l < r; l, r = l+1, r-1 {
		res[l], res[r] = res[r], res[l]
	}
	return res
}

func min3(a, b, c int) int {
	res := a
	if b < res {
		res = b
	}
	if c < res {
		res = c
	}
	return res
}

func strPtr(s string) *string {
	return &s
}
