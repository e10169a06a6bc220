package utils

type Index []int

func NewIndex(n int) (I Index) {
	I = make(Index, n)
	return
}

func NewRange(min, max int) (I Index) {
	I = make(Index, max-min)
	for i := range I {
		I[i] = min + i
	}
	return
}

func (I Index) Contains(val int) bool {
	for _, v := range I {
		if v == val {
			return true
		}
	}
	return false
}

func (I Index) Max() (m int) {
	for _, v := range I {
		if v > m {
			m = v
		}
	}
	return
}
