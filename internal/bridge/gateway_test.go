package bridge

import (
	"context"
	"errors"
	"testing"

	"github.com/amimof/huego"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedCall struct {
	kind  string // "group" or "light"
	id    int
	state huego.State
}

type fakeController struct {
	lights    []Light
	groupIDs  map[int][]int
	groupErr  error
	lightErrs map[int]error

	calls []recordedCall
}

func (f *fakeController) Lights(ctx context.Context) ([]Light, error) {
	return f.lights, nil
}

func (f *fakeController) GroupLightIDs(ctx context.Context, groupID int) ([]int, error) {
	ids, ok := f.groupIDs[groupID]
	if !ok {
		return nil, errors.New("unknown group")
	}
	return ids, nil
}

func (f *fakeController) SetLight(ctx context.Context, id int, state huego.State) error {
	f.calls = append(f.calls, recordedCall{kind: "light", id: id, state: state})
	if err, ok := f.lightErrs[id]; ok {
		return err
	}
	return nil
}

func (f *fakeController) SetGroup(ctx context.Context, id int, state huego.State) error {
	f.calls = append(f.calls, recordedCall{kind: "group", id: id, state: state})
	return f.groupErr
}

func TestApplyClampsOutOfRangeFields(t *testing.T) {
	tests := []struct {
		name  string
		state State
		want  huego.State
	}{
		{
			name:  "brightness_above_max",
			state: State{Bri: Int(9000)},
			want:  huego.State{On: true, Bri: 254},
		},
		{
			name:  "brightness_below_min",
			state: State{Bri: Int(0)},
			want:  huego.State{On: true, Bri: 1},
		},
		{
			name:  "color_temp_below_min",
			state: State{Ct: Int(10)},
			want:  huego.State{On: true, Ct: 153},
		},
		{
			name:  "color_temp_above_max",
			state: State{Ct: Int(9999)},
			want:  huego.State{On: true, Ct: 500},
		},
		{
			name:  "hue_and_sat",
			state: State{Hue: Int(70000), Sat: Int(-5)},
			want:  huego.State{On: true, Hue: 65535, Sat: 0},
		},
		{
			name:  "in_range_untouched",
			state: State{On: Bool(false), Bri: Int(120), Ct: Int(300)},
			want:  huego.State{On: false, Bri: 120, Ct: 300},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := &fakeController{}
			g := NewGateway(ctrl, 0)

			require.NoError(t, g.ApplyToAllLights(context.Background(), tt.state))
			require.Len(t, ctrl.calls, 1)
			assert.Equal(t, "group", ctrl.calls[0].kind)
			assert.Equal(t, AllLightsGroup, ctrl.calls[0].id)
			assert.Equal(t, tt.want, ctrl.calls[0].state)
		})
	}
}

func TestApplyFallsBackToPerLightCommands(t *testing.T) {
	ctrl := &fakeController{
		groupErr: errors.New("bridge rejected broadcast"),
		groupIDs: map[int][]int{AllLightsGroup: {1, 2, 3}},
	}
	g := NewGateway(ctrl, 0)

	// Fallback succeeds, so the caller never sees the broadcast failure.
	err := g.ApplyToAllLights(context.Background(), State{Bri: Int(200)})
	require.NoError(t, err)

	require.Len(t, ctrl.calls, 4)
	assert.Equal(t, "group", ctrl.calls[0].kind)
	for i, wantID := range []int{1, 2, 3} {
		call := ctrl.calls[i+1]
		assert.Equal(t, "light", call.kind)
		assert.Equal(t, wantID, call.id)
		assert.Equal(t, uint8(200), call.state.Bri)
	}
}

func TestApplyFallbackPartialFailureIsSuccess(t *testing.T) {
	ctrl := &fakeController{
		groupErr:  errors.New("broadcast down"),
		groupIDs:  map[int][]int{AllLightsGroup: {1, 2}},
		lightErrs: map[int]error{1: errors.New("unreachable")},
	}
	g := NewGateway(ctrl, 0)

	err := g.ApplyToAllLights(context.Background(), State{Bri: Int(100)})
	assert.NoError(t, err)
}

func TestApplyFallbackAllFailuresSurface(t *testing.T) {
	ctrl := &fakeController{
		groupErr: errors.New("broadcast down"),
		groupIDs: map[int][]int{AllLightsGroup: {1, 2}},
		lightErrs: map[int]error{
			1: errors.New("unreachable"),
			2: errors.New("unreachable"),
		},
	}
	g := NewGateway(ctrl, 0)

	err := g.ApplyToAllLights(context.Background(), State{Bri: Int(100)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all per-light fallback commands failed")
}

func TestApplyFallbackEmptyGroupSurfacesBroadcastError(t *testing.T) {
	ctrl := &fakeController{
		groupErr: errors.New("broadcast down"),
		groupIDs: map[int][]int{AllLightsGroup: {}},
	}
	g := NewGateway(ctrl, 0)

	err := g.ApplyToAllLights(context.Background(), State{Bri: Int(100)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "group broadcast failed")
}

func TestSetLightStateHasNoFallback(t *testing.T) {
	ctrl := &fakeController{
		lightErrs: map[int]error{7: errors.New("unreachable")},
	}
	g := NewGateway(ctrl, 0)

	err := g.SetLightState(context.Background(), 7, State{Bri: Int(50)})
	require.Error(t, err)
	require.Len(t, ctrl.calls, 1)
	assert.Equal(t, "light", ctrl.calls[0].kind)
}

func TestUnconfiguredGateway(t *testing.T) {
	g := NewGateway(nil, 0)
	ctx := context.Background()

	assert.False(t, g.Configured())

	_, err := g.AllLights(ctx)
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = g.GroupLightIDs(ctx, AllLightsGroup)
	assert.ErrorIs(t, err, ErrNotConfigured)

	assert.ErrorIs(t, g.ApplyToAllLights(ctx, State{}), ErrNotConfigured)
	assert.ErrorIs(t, g.SetLightState(ctx, 1, State{}), ErrNotConfigured)
}

func TestRateLimiterHonorsContextCancellation(t *testing.T) {
	ctrl := &fakeController{}
	g := NewGateway(ctrl, 0.001) // one dispatch per ~17 minutes

	ctx := context.Background()
	require.NoError(t, g.ApplyToAllLights(ctx, State{}))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	err := g.ApplyToAllLights(cancelled, State{})
	require.Error(t, err)
	assert.Len(t, ctrl.calls, 1)
}
