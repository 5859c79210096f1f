package utils

import (
	"cmp"
	"math"
	"slices"

	"golang.org/x/exp/constraints"
)

func Argmax[T cmp.Ordered](arr []T) (argmax int) {
	for i := range arr {
		if cmp.Compare(arr[i], arr[argmax]) == 1 {
			argmax = i
		}
	}
	return
}

type Number interface {
	constraints.Float | constraints.Integer
}

func Average[T Number](s []T) (mean float64) {
	for i := range s {
		mean += float64(s[i])
	}
	mean /= float64(len(s))
	return
}

func IntAbs[T constraints.Signed](a T) T {
	if a < 0 {
		return -a
	}
	return a
}

// Nint rounds to the nearest integer, halves away from zero.
func Nint[T constraints.Float](v T) int {
	return int(math.Round(float64(v)))
}

// MinusOnePow is (-1)^n for any integer n.
func MinusOnePow(n int) float64 {
	if n%2 == 0 {
		return 1
	}
	return -1
}

// IPow is i^n for any integer n.
func IPow(n int) complex128 {
	switch ((n % 4) + 4) % 4 {
	case 0:
		return 1
	case 1:
		return 1i
	case 2:
		return -1
	default:
		return -1i
	}
}

// Steps returns the number of points of the grid start, start+step, ... up
// to stop, tolerating rounding by tol.
func Steps(start, stop, step, tol float64) int {
	if step <= 0 || stop < start-tol {
		return 0
	}
	return int(math.Floor((stop-start+tol)/step)) + 1
}

func Intersect(a, b []string) *string {
	for i := range a {
		if slices.Contains(b, a[i]) {
			return &a[i]
		}
	}
	return nil
}
