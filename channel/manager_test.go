package channel

import (
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"servos/curve"
)

func TestManagerAddGetList(t *testing.T) {
	m := NewManager(5)
	a, err := m.Add("")
	test.That(t, err, test.ShouldBeNil)
	b, err := m.Add("gripper")
	test.That(t, err, test.ShouldBeNil)

	test.That(t, a.ID, test.ShouldEqual, 1)
	test.That(t, b.ID, test.ShouldEqual, 2)
	test.That(t, b.Name, test.ShouldEqual, "gripper")
	test.That(t, m.NextID(), test.ShouldEqual, 3)

	got, err := m.Get(2)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got.Name, test.ShouldEqual, "gripper")

	_, err = m.Get(9)
	test.That(t, errors.Is(err, ErrNotFound), test.ShouldBeTrue)
	test.That(t, m.IDs(), test.ShouldResemble, []int{1, 2})
}

func TestManagerIDsNeverReused(t *testing.T) {
	m := NewManager(5)
	test.That(t, m.Reset(3), test.ShouldBeNil)
	test.That(t, m.Remove(3), test.ShouldBeNil)
	ch, err := m.Add("")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ch.ID, test.ShouldEqual, 4)
}

func TestManagerKeepsLastChannel(t *testing.T) {
	m := NewManager(5)
	test.That(t, m.Reset(1), test.ShouldBeNil)
	err := m.Remove(1)
	test.That(t, errors.Is(err, ErrLimit), test.ShouldBeTrue)
	test.That(t, m.Count(), test.ShouldEqual, 1)
	test.That(t, errors.Is(m.Remove(42), ErrNotFound), test.ShouldBeTrue)
}

func TestManagerMaxChannels(t *testing.T) {
	m := NewManager(5)
	test.That(t, m.Reset(16), test.ShouldBeNil)
	_, err := m.Add("")
	test.That(t, errors.Is(err, ErrLimit), test.ShouldBeTrue)
	test.That(t, errors.Is(m.Reset(17), ErrLimit), test.ShouldBeTrue)
	test.That(t, errors.Is(m.Reset(0), ErrLimit), test.ShouldBeTrue)
}

func TestManagerSetCount(t *testing.T) {
	m := NewManager(5)
	test.That(t, m.Reset(3), test.ShouldBeNil)

	added, removed, err := m.SetCount(5)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, added, test.ShouldResemble, []int{4, 5})
	test.That(t, removed, test.ShouldBeEmpty)

	added, removed, err = m.SetCount(2)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, added, test.ShouldBeEmpty)
	test.That(t, removed, test.ShouldResemble, []int{3, 4, 5})
	test.That(t, m.IDs(), test.ShouldResemble, []int{1, 2})

	_, _, err = m.SetCount(0)
	test.That(t, errors.Is(err, ErrLimit), test.ShouldBeTrue)
}

func TestManagerPut(t *testing.T) {
	m := NewManager(5)
	m.Clear(1)
	ch, _ := New(7, "", 5)
	test.That(t, m.Put(ch), test.ShouldBeNil)
	test.That(t, m.NextID(), test.ShouldEqual, 8)
	test.That(t, m.Put(ch), test.ShouldNotBeNil)
}

func TestManagerSetDurationRescales(t *testing.T) {
	m := NewManager(5)
	test.That(t, m.Reset(2), test.ShouldBeNil)
	ch, _ := m.Get(1)
	id, _ := ch.Curve.InsertKeyframe(1, 120)

	test.That(t, m.SetDuration(10), test.ShouldBeNil)
	test.That(t, m.Duration(), test.ShouldEqual, 10.0)
	kf, _ := ch.Curve.Keyframe(id)
	test.That(t, kf.Time, test.ShouldEqual, 2.0)

	test.That(t, errors.Is(m.SetDuration(0), curve.ErrOutOfRange), test.ShouldBeTrue)
	test.That(t, m.Duration(), test.ShouldEqual, 10.0)

	added, _, _ := m.SetCount(3)
	fresh, _ := m.Get(added[0])
	test.That(t, fresh.Curve.Duration(), test.ShouldEqual, 10.0)
}

func TestManagerSetDurationIsAllOrNothing(t *testing.T) {
	m := NewManager(5)
	test.That(t, m.Reset(2), test.ShouldBeNil)
	first, _ := m.Get(1)
	firstID, _ := first.Curve.InsertKeyframe(2, 120)
	second, _ := m.Get(2)
	_, err := second.Curve.InsertKeyframe(1, 100)
	test.That(t, err, test.ShouldBeNil)
	_, err = second.Curve.InsertKeyframe(1+3e-6, 110)
	test.That(t, err, test.ShouldBeNil)

	err = m.SetDuration(1)
	test.That(t, errors.Is(err, curve.ErrOrderViolation), test.ShouldBeTrue)
	test.That(t, m.Duration(), test.ShouldEqual, 5.0)
	kf, _ := first.Curve.Keyframe(firstID)
	test.That(t, kf.Time, test.ShouldEqual, 2.0)
	test.That(t, first.Curve.Duration(), test.ShouldEqual, 5.0)
	test.That(t, second.Curve.Duration(), test.ShouldEqual, 5.0)
}
