package container

import (
	"cmp"
	"fmt"
	"log"
	"slices"
)

// IHasVAndLength 具有速度和长度属性的接口
// 功能：车辆作为链表元素时需要提供的关键信息
type IHasVAndLength interface {
	V() float64      // 获取速度
	Length() float64 // 获取长度
}

// ListNode 双向链表中的节点
// 说明：S为排序键（车辆在车道上的纵向位置），链表按S升序排列
type ListNode[T IHasVAndLength, E any] struct {
	parent     *List[T, E]     // 所属链表
	prev, next *ListNode[T, E] // 前驱和后继节点
	S          float64         // 键值（纵向位置）
	Value      T               // 主要值
	Extra      E               // 额外信息
}

func (n *ListNode[T, E]) String() string {
	return fmt.Sprintf("Node{Key:%v, Value:%+v, Extra:%+v}", n.S, n.Value, n.Extra)
}

// V 直接获取Value的速度
func (n *ListNode[T, E]) V() float64 {
	return n.Value.V()
}

// InsertBefore 在节点前插入新节点
func (n *ListNode[T, E]) InsertBefore(add *ListNode[T, E]) {
	if add.parent != nil {
		log.Panic("insert node who already in list")
	}
	add.parent = n.parent
	add.next = n
	add.prev = n.prev
	n.prev = add
	if add.prev != nil {
		add.prev.next = add
	} else {
		add.parent.head = add
	}
	n.parent.length++
}

// InsertAfter 在节点后插入新节点
func (n *ListNode[T, E]) InsertAfter(add *ListNode[T, E]) {
	if add.parent != nil {
		log.Panic("insert node who already in list")
	}
	add.parent = n.parent
	add.prev = n
	add.next = n.next
	n.next = add
	if add.next != nil {
		add.next.prev = add
	} else {
		add.parent.tail = add
	}
	n.parent.length++
}

// List 双向链表
// 功能：按纵向位置有序地存储同一车道上的车辆
type List[T IHasVAndLength, E any] struct {
	ID         string          // 链表标识符
	head, tail *ListNode[T, E] // 头尾节点指针
	length     int             // 链表长度
}

func (l *List[T, E]) String() string {
	return fmt.Sprintf("List{ID:%v}", l.ID)
}

// Keys 所有节点的键值（从头到尾）
func (l *List[T, E]) Keys() []float64 {
	keys := make([]float64, 0, l.length)
	for node := l.head; node != nil; node = node.next {
		keys = append(keys, node.S)
	}
	return keys
}

// Values 所有节点的值（从头到尾）
func (l *List[T, E]) Values() []T {
	values := make([]T, 0, l.length)
	for node := l.head; node != nil; node = node.next {
		values = append(values, node.Value)
	}
	return values
}

// Len 链表长度
func (l *List[T, E]) Len() int {
	return l.length
}

// PushBack 向链表尾部插入节点
func (l *List[T, E]) PushBack(add *ListNode[T, E]) {
	if add.parent != nil {
		log.Panic("push back node who already in list")
	}
	add.next = nil
	add.prev = nil
	if l.tail == nil {
		add.parent = l
		l.head = add
		l.tail = add
		l.length++
	} else {
		// length++和add.parent在InsertAfter中处理
		l.tail.InsertAfter(add)
	}
}

// Remove 从链表中移除节点
func (l *List[T, E]) Remove(node *ListNode[T, E]) {
	if node.parent != l {
		log.Panic("remove node from wrong list")
	}
	if node.prev != nil {
		node.prev.next = node.next
	} else {
		l.head = node.next
	}
	if node.next != nil {
		node.next.prev = node.prev
	} else {
		l.tail = node.prev
	}
	node.prev = nil
	node.next = nil
	node.parent = nil
	l.length--
}

// PopUnsorted 移除逆序节点
// 功能：移除键值小于前驱节点键值的节点（即本帧超车导致的逆序）
// 返回：被移除的节点
func (l *List[T, E]) PopUnsorted() (unsorted []*ListNode[T, E]) {
	for node := l.head; node != nil; {
		next := node.next
		if node.prev != nil && node.prev.S > node.S {
			l.Remove(node)
			unsorted = append(unsorted, node)
		}
		node = next
	}
	return unsorted
}

// Merge 批量有序插入节点
func (l *List[T, E]) Merge(adds []*ListNode[T, E]) {
	slices.SortStableFunc(adds, func(a, b *ListNode[T, E]) int {
		return cmp.Compare(a.S, b.S)
	})
	node := l.head
	for _, add := range adds {
		for node != nil && node.S < add.S {
			node = node.next
		}
		if node != nil {
			node.InsertBefore(add)
		} else {
			l.PushBack(add)
		}
	}
}

// Resort 在键值更新后恢复有序
func (l *List[T, E]) Resort() {
	l.Merge(l.PopUnsorted())
}

// Around 查找键值s两侧最近的节点
// 返回：behind-键值不大于s的最后一个节点，ahead-键值大于s的第一个节点
// 说明：exclude节点不参与查找（用于查找车辆自身以外的邻车）
func (l *List[T, E]) Around(s float64, exclude *ListNode[T, E]) (behind, ahead *ListNode[T, E]) {
	for node := l.head; node != nil; node = node.next {
		if node == exclude {
			continue
		}
		if node.S > s {
			return behind, node
		}
		behind = node
	}
	return behind, nil
}
