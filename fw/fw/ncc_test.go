package fw

import (
	"testing"
	"time"

	"github.com/named-data/ndnd-ncc/fw/core"
	"github.com/named-data/ndnd-ncc/fw/defn"
	"github.com/named-data/ndnd-ncc/fw/table"
	enc "github.com/named-data/ndnd-ncc/std/encoding"
	"github.com/named-data/ndnd-ncc/std/engine/basic"
	"github.com/named-data/ndnd-ncc/std/types/optional"
	"github.com/stretchr/testify/require"
)

type fakeSend struct {
	face defn.FaceId
	name string
}

type fakeFaces struct {
	interests []fakeSend
	datas     []fakeSend
}

func (f *fakeFaces) SendInterest(face defn.FaceId, pkt *defn.Pkt) error {
	f.interests = append(f.interests, fakeSend{face, pkt.Name.String()})
	return nil
}

func (f *fakeFaces) SendData(face defn.FaceId, pkt *defn.Pkt) error {
	f.datas = append(f.datas, fakeSend{face, pkt.Name.String()})
	return nil
}

func newNccTestThread(t *testing.T, cfg core.NccConfig) (*Thread, *Ncc, *fakeFaces, *basic.DummyTimer) {
	t.Helper()
	DefaultNccConfig = cfg
	faces := &fakeFaces{}
	timer := basic.NewDummyTimer()
	pit := table.NewPit()
	fib := table.NewFibStrategyTable("")
	measurements, err := table.NewMeasurements("")
	require.NoError(t, err)
	cs := table.NewCs()

	thread := NewThread(pit, fib, measurements, cs, faces, timer)
	ncc, ok := thread.Strategy("ncc/v=1").(*Ncc)
	require.True(t, ok)
	return thread, ncc, faces, timer
}

func testCfg(seed uint64) core.NccConfig {
	return core.NccConfig{
		UpdateMeasurementsNLevels: 2,
		AdjustPredictUpShift:      3,
		AdjustPredictDownShift:    4,
		RngSeed:                   seed,
	}
}

func mustTestName(t *testing.T, s string) enc.Name {
	t.Helper()
	n, err := enc.NameFromStr(s)
	require.NoError(t, err)
	return n
}

func mkInterest(t *testing.T, name string) *defn.FwInterest {
	t.Helper()
	return &defn.FwInterest{
		NameV:  mustTestName(t, name),
		NonceV: optional.Some(uint32(1)),
	}
}

// --- Prediction arithmetic: invariants 1, 2, 9, 10 ---

func TestAdjustPredictUpClampsAtMax(t *testing.T) {
	cfg := testCfg(1)
	mi := newMeasurementInfo()
	mi.prediction = MaxPrediction
	mi.adjustPredictUp(cfg)
	require.Equal(t, MaxPrediction, mi.prediction)
}

func TestAdjustPredictDownClampsAtMin(t *testing.T) {
	cfg := testCfg(1)
	mi := newMeasurementInfo()
	mi.prediction = MinPrediction
	mi.adjustPredictDown(cfg)
	require.Equal(t, MinPrediction, mi.prediction)
}

func TestAdjustPredictUpMonotone(t *testing.T) {
	cfg := testCfg(1)
	mi := newMeasurementInfo()
	prev := mi.prediction
	for i := 0; i < 5; i++ {
		mi.adjustPredictUp(cfg)
		require.GreaterOrEqual(t, mi.prediction, prev)
		require.GreaterOrEqual(t, mi.prediction, MinPrediction)
		require.LessOrEqual(t, mi.prediction, MaxPrediction)
		prev = mi.prediction
	}
}

func TestAdjustPredictDownMonotone(t *testing.T) {
	cfg := testCfg(1)
	mi := newMeasurementInfo()
	prev := mi.prediction
	for i := 0; i < 5; i++ {
		mi.adjustPredictDown(cfg)
		require.LessOrEqual(t, mi.prediction, prev)
		require.GreaterOrEqual(t, mi.prediction, MinPrediction)
		prev = mi.prediction
	}
}

// updateBestFace on a fresh MeasurementInfo establishes bestFace and
// leaves prediction untouched (testable property 3).
func TestUpdateBestFaceFreshLeavesPredictionUnchanged(t *testing.T) {
	cfg := testCfg(1)
	mi := newMeasurementInfo()
	before := mi.prediction
	mi.updateBestFace(7, cfg)
	face, ok := mi.bestFace.Get()
	require.True(t, ok)
	require.Equal(t, defn.FaceId(7), face)
	require.Equal(t, before, mi.prediction)
}

// maxInterval floor: invariant 11, via the ceilDiv helper AfterReceiveInterest uses.
func TestCeilDivNeverBelowOneMicrosecond(t *testing.T) {
	require.Equal(t, time.Microsecond, ceilDiv(0, 1000))
	require.Equal(t, time.Microsecond, ceilDiv(1, 1000000))
}

// --- S1: no nexthop ---

func TestScenarioS1NoNexthop(t *testing.T) {
	thread, ncc, faces, _ := newNccTestThread(t, testCfg(1))
	interest := mkInterest(t, "/ndn/edu/ucla/ping/1")
	pitEntry, _ := thread.Pit.FindOrInsert(interest, 4*time.Second)

	ncc.AfterReceiveInterest(defn.NewInterestPkt(interest), pitEntry, 99, nil)

	require.Empty(t, faces.interests)
	_, found := thread.Pit.Find(interest.NameV)
	require.False(t, found, "rejected PIT entry must be erased")
}

// --- S2: cold start, single nexthop ---

func TestScenarioS2ColdStartSingleNexthop(t *testing.T) {
	thread, ncc, faces, timer := newNccTestThread(t, testCfg(1))
	name := "/ndn/edu/ucla/ping/2"
	thread.Fib.InsertNextHop(mustTestName(t, name), 1, 10)

	interest := mkInterest(t, name)
	pitEntry, _ := thread.Pit.FindOrInsert(interest, 4*time.Second)
	fibEntry, ok := thread.Fib.FindLongestPrefixMatch(pitEntry.EncName())
	require.True(t, ok)

	ncc.AfterReceiveInterest(defn.NewInterestPkt(interest), pitEntry, 99, fibEntry.GetNextHops())

	require.Len(t, faces.interests, 1)
	require.Equal(t, defn.FaceId(1), faces.interests[0].face)

	info, ok := pitEntry.GetStrategyInfo().(*pitInfo)
	require.True(t, ok)
	require.Nil(t, info.cancelTimeout, "no best face yet, so no bestFaceTimeout")
	require.NotNil(t, info.cancelPropagate)

	timer.MoveForward(3000 * time.Microsecond)
	ncc.BeforeSatisfyInterest(pitEntry, 1)

	mi := ncc.getMeasurementsEntryInfoForName(pitEntry.EncName())
	bestFace, ok := mi.bestFace.Get()
	require.True(t, ok)
	require.Equal(t, defn.FaceId(1), bestFace)
	require.Equal(t, InitialPrediction, mi.prediction)

	require.Nil(t, info.cancelPropagate)
	require.Nil(t, info.cancelTimeout)
}

// --- S3: warm best face, confirmed ---

func TestScenarioS3WarmBestFaceConfirmed(t *testing.T) {
	thread, ncc, faces, timer := newNccTestThread(t, testCfg(1))
	name := "/ndn/edu/ucla/ping/3"
	thread.Fib.InsertNextHop(mustTestName(t, name), 1, 10)
	thread.Fib.InsertNextHop(mustTestName(t, name), 2, 20)

	entry, _ := thread.Measurements.Get(mustTestName(t, name), core.MeasurementsLifetime)
	entry.SetStrategyInfo(&MeasurementInfo{
		prediction: InitialPrediction,
		bestFace:   optional.Some(defn.FaceId(1)),
	})

	interest := mkInterest(t, name)
	pitEntry, _ := thread.Pit.FindOrInsert(interest, 4*time.Second)
	fibEntry, ok := thread.Fib.FindLongestPrefixMatch(pitEntry.EncName())
	require.True(t, ok)

	ncc.AfterReceiveInterest(defn.NewInterestPkt(interest), pitEntry, 99, fibEntry.GetNextHops())

	require.Len(t, faces.interests, 1)
	require.Equal(t, defn.FaceId(1), faces.interests[0].face)

	info, ok := pitEntry.GetStrategyInfo().(*pitInfo)
	require.True(t, ok)
	require.NotNil(t, info.cancelTimeout)
	require.NotNil(t, info.cancelPropagate)
	require.Equal(t, InitialPrediction, info.maxInterval)

	timer.MoveForward(5000 * time.Microsecond)
	ncc.BeforeSatisfyInterest(pitEntry, 1)

	mi := ncc.getMeasurementsEntryInfoForName(pitEntry.EncName())
	require.Equal(t, InitialPrediction-(InitialPrediction>>4), mi.prediction)
	require.Nil(t, info.cancelTimeout)
	require.Nil(t, info.cancelPropagate)
}

// --- S4: warm best face, timeout then backup wins ---

func TestScenarioS4TimeoutThenBackupWins(t *testing.T) {
	thread, ncc, faces, timer := newNccTestThread(t, testCfg(1))
	name := "/ndn/edu/ucla/ping/4"
	thread.Fib.InsertNextHop(mustTestName(t, name), 1, 10)
	thread.Fib.InsertNextHop(mustTestName(t, name), 2, 20)

	entry, _ := thread.Measurements.Get(mustTestName(t, name), core.MeasurementsLifetime)
	entry.SetStrategyInfo(&MeasurementInfo{
		prediction: InitialPrediction,
		bestFace:   optional.Some(defn.FaceId(1)),
	})

	interest := mkInterest(t, name)
	pitEntry, _ := thread.Pit.FindOrInsert(interest, 4*time.Second)
	fibEntry, ok := thread.Fib.FindLongestPrefixMatch(pitEntry.EncName())
	require.True(t, ok)

	ncc.AfterReceiveInterest(defn.NewInterestPkt(interest), pitEntry, 99, fibEntry.GetNextHops())
	require.Len(t, faces.interests, 1)

	timer.MoveForward(InitialPrediction + time.Microsecond)

	require.Len(t, faces.interests, 2, "propagate tick should have sent to the backup face")
	require.Equal(t, defn.FaceId(2), faces.interests[1].face)

	mi := ncc.getMeasurementsEntryInfoForName(pitEntry.EncName())
	wantUp := InitialPrediction + (InitialPrediction >> 3)
	require.Equal(t, wantUp, mi.prediction, "timeout must up-adjust before the Data arrives")

	ncc.BeforeSatisfyInterest(pitEntry, 2)

	best, ok := mi.bestFace.Get()
	require.True(t, ok)
	require.Equal(t, defn.FaceId(2), best)
	prev, ok := mi.previousFace.Get()
	require.True(t, ok)
	require.Equal(t, defn.FaceId(1), prev)
	require.Equal(t, wantUp, mi.prediction, "demotion must not itself touch prediction")
}

// --- S5: retransmission ignored ---

func TestScenarioS5RetransmissionIgnored(t *testing.T) {
	thread, ncc, faces, _ := newNccTestThread(t, testCfg(1))
	name := "/ndn/edu/ucla/ping/5"
	thread.Fib.InsertNextHop(mustTestName(t, name), 1, 10)

	interest := mkInterest(t, name)
	pitEntry, _ := thread.Pit.FindOrInsert(interest, 4*time.Second)
	fibEntry, ok := thread.Fib.FindLongestPrefixMatch(pitEntry.EncName())
	require.True(t, ok)
	nexthops := fibEntry.GetNextHops()

	ncc.AfterReceiveInterest(defn.NewInterestPkt(interest), pitEntry, 99, nexthops)
	require.Len(t, faces.interests, 1)

	info, ok := pitEntry.GetStrategyInfo().(*pitInfo)
	require.True(t, ok)
	require.False(t, info.isNewInterest)
	hadPropagateTimer := info.cancelPropagate != nil

	// Duplicate on-Interest for the same PIT entry: isNewInterest is
	// already false, so this must be a pure no-op.
	ncc.AfterReceiveInterest(defn.NewInterestPkt(interest), pitEntry, 99, nexthops)

	require.Len(t, faces.interests, 1, "retransmission must not trigger another send")
	require.Equal(t, hadPropagateTimer, info.cancelPropagate != nil, "timer state must be unchanged by a retransmission")
}

// --- S6 / round-trip law 8: namespace inheritance ---

func TestScenarioS6NamespaceInheritance(t *testing.T) {
	thread, ncc, _, _ := newNccTestThread(t, testCfg(1))

	parentEntry, _ := thread.Measurements.Get(mustTestName(t, "/a"), core.MeasurementsLifetime)
	parentEntry.SetStrategyInfo(&MeasurementInfo{
		prediction: 20000 * time.Microsecond,
		bestFace:   optional.Some(defn.FaceId(1)),
	})

	childInfo := ncc.getMeasurementsEntryInfoForName(mustTestName(t, "/a/b"))

	require.Equal(t, 20000*time.Microsecond, childInfo.prediction)
	childFace, ok := childInfo.bestFace.Get()
	require.True(t, ok)
	require.Equal(t, defn.FaceId(1), childFace)
}
