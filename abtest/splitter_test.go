package abtest

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSplitterRange(t *testing.T) {
	for _, split := range []int{-1, 101, 1000} {
		_, err := NewSplitter(split, 0)
		assert.ErrorIs(t, err, ErrInvalidSplit, "split %d", split)
	}
	s, err := NewSplitter(30, 7)
	require.NoError(t, err)
	assert.Equal(t, 30, s.Split())
	assert.Equal(t, int64(7), s.Seed())
}

func TestBucketRange(t *testing.T) {
	for i := 0; i < 500; i++ {
		b := Bucket(fmt.Sprintf("user_%d", i))
		assert.GreaterOrEqual(t, b, 0)
		assert.LessOrEqual(t, b, 100)
	}
}

func TestBucketKnownDigest(t *testing.T) {
	// md5("") = d41d8cd9...; 0xd41d8cd9 % 101
	assert.Equal(t, int(uint32(0xd41d8cd9)%101), Bucket(""))
}

func TestAssignGroupDeterministic(t *testing.T) {
	a, _ := NewSplitter(50, 1)
	b, _ := NewSplitter(50, 99)
	for i := 0; i < 100; i++ {
		id := fmt.Sprintf("test_%d", i)
		assert.Equal(t, a.AssignGroup(id), a.AssignGroup(id))
		assert.Equal(t, a.AssignGroup(id), b.AssignGroup(id), "seed must not affect assignment")
	}
}

func TestAssignGroupDistribution(t *testing.T) {
	s, _ := NewSplitter(50, 42)
	countA := 0
	for i := 0; i < 1000; i++ {
		if s.AssignGroup(fmt.Sprintf("user_%d", i)) == GroupA {
			countA++
		}
	}
	assert.InDelta(t, 500, countA, 100)
}

func TestAssignGroupMonotonicInSplit(t *testing.T) {
	low, _ := NewSplitter(30, 0)
	high, _ := NewSplitter(70, 0)
	for i := 0; i < 1000; i++ {
		id := fmt.Sprintf("item_%d", i)
		if low.AssignGroup(id) == GroupA {
			assert.Equal(t, GroupA, high.AssignGroup(id), id)
		}
	}
}

func TestAssignGroupExtremes(t *testing.T) {
	all, _ := NewSplitter(100, 0)
	none, _ := NewSplitter(0, 0)
	for i := 0; i < 1000; i++ {
		id := fmt.Sprintf("x_%d", i)
		assert.Equal(t, GroupA, all.AssignGroup(id))
		want := GroupB
		if Bucket(id) == 0 {
			want = GroupA
		}
		assert.Equal(t, want, none.AssignGroup(id))
	}
}
