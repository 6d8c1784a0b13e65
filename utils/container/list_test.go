package container_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tsinghua-fib-lab/highway-datagen/utils/container"
)

type car struct {
	v float64
}

func (c car) V() float64 {
	return c.v
}

func (c car) Length() float64 {
	return 5
}

func node(s float64) *container.ListNode[car, struct{}] {
	return &container.ListNode[car, struct{}]{S: s, Value: car{v: s}}
}

func TestListInit(t *testing.T) {
	l := &container.List[car, struct{}]{}
	assert.Equal(t, 0, l.Len())
	assert.Empty(t, l.Keys())
	assert.Empty(t, l.Values())
}

func TestListOperation(t *testing.T) {
	l := &container.List[car, struct{}]{}

	// ^, 1, ^
	n1 := node(1)
	l.PushBack(n1)
	// ^, 2, 1, ^
	n2 := node(2)
	n1.InsertBefore(n2)
	// ^, 3, 2, 1, ^
	n3 := node(3)
	n2.InsertBefore(n3)
	// ^, 3, 2, 1, 4, ^
	n4 := node(4)
	n1.InsertAfter(n4)
	assert.Equal(t, 4, l.Len())
	assert.Equal(t, []float64{3, 2, 1, 4}, l.Keys())
	assert.Equal(t, []car{{3}, {2}, {1}, {4}}, l.Values())
	assert.Equal(t, 4.0, n4.V())

	// ^, 0, 3, 2, 1, 4, ^
	n0 := node(0)
	n3.InsertBefore(n0)
	unsorted := l.PopUnsorted()
	assert.ElementsMatch(t, []*container.ListNode[car, struct{}]{n2, n1}, unsorted)
	assert.Equal(t, 3, l.Len())
	assert.Equal(t, []float64{0, 3, 4}, l.Keys())

	l.Merge(unsorted)
	assert.Equal(t, []float64{0, 1, 2, 3, 4}, l.Keys())

	l.Remove(n4)
	assert.Equal(t, []float64{0, 1, 2, 3}, l.Keys())
	assert.Equal(t, 4, l.Len())
	// 已移除的节点不能再次移除
	assert.Panics(t, func() { l.Remove(n4) })
	assert.Panics(t, func() { l.PushBack(n3) })
}

func TestListResort(t *testing.T) {
	l := &container.List[car, struct{}]{}
	nodes := []*container.ListNode[car, struct{}]{node(0), node(10), node(20), node(30)}
	for _, n := range nodes {
		l.PushBack(n)
	}
	// 10号节点超过了20和30
	nodes[1].S = 35
	l.Resort()
	assert.Equal(t, []float64{0, 20, 30, 35}, l.Keys())
	assert.Equal(t, car{10}, l.Values()[3])
}

func TestListAround(t *testing.T) {
	l := &container.List[car, struct{}]{}
	a, b, c := node(0), node(10), node(20)
	l.PushBack(a)
	l.PushBack(b)
	l.PushBack(c)

	behind, ahead := l.Around(12, nil)
	assert.Equal(t, b, behind)
	assert.Equal(t, c, ahead)

	behind, ahead = l.Around(10, b)
	assert.Equal(t, a, behind)
	assert.Equal(t, c, ahead)

	behind, ahead = l.Around(25, nil)
	assert.Equal(t, c, behind)
	assert.Nil(t, ahead)

	behind, ahead = l.Around(-1, nil)
	assert.Nil(t, behind)
	assert.Equal(t, a, ahead)
}
