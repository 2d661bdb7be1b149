package preset

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/framecast/render-api/internal/domain"
)

func intPtr(v int) *int             { return &v }
func int64Ptr(v int64) *int64       { return &v }
func float64Ptr(v float64) *float64 { return &v }

func TestResolveProfileDefaults(t *testing.T) {
	spec, err := Resolve(domain.GenerationRequest{
		Prompt:  "A sunrise",
		Profile: "instagram",
	})
	require.NoError(t, err)

	assert.Equal(t, "instagram", spec.Profile)
	assert.Equal(t, 1080, spec.Width)
	assert.Equal(t, 1920, spec.Height)
	assert.Equal(t, 30, spec.FPS)
	assert.Equal(t, DefaultDurationSeconds, spec.DurationSeconds)
	assert.Equal(t, DefaultInferenceSteps, spec.InferenceSteps)
	assert.Equal(t, DefaultGuidanceScale, spec.GuidanceScale)
}

func TestResolveUnknownProfileFallsBackToDefault(t *testing.T) {
	spec, err := Resolve(domain.GenerationRequest{
		Prompt:  "A sunrise",
		Profile: "tiktok",
	})
	require.NoError(t, err)

	assert.Equal(t, "default", spec.Profile)
	assert.Equal(t, 1024, spec.Width)
	assert.Equal(t, 576, spec.Height)
	assert.Equal(t, 24, spec.FPS)
}

func TestResolveAppliesOverrides(t *testing.T) {
	spec, err := Resolve(domain.GenerationRequest{
		Prompt:          "A sunrise",
		NegativePrompt:  "rain",
		Profile:         "youtube",
		Width:           intPtr(1280),
		Height:          intPtr(720),
		FPS:             intPtr(25),
		DurationSeconds: intPtr(10),
		Seed:            int64Ptr(42),
		InferenceSteps:  intPtr(50),
		GuidanceScale:   float64Ptr(9.0),
	})
	require.NoError(t, err)

	assert.Equal(t, 1280, spec.Width)
	assert.Equal(t, 720, spec.Height)
	assert.Equal(t, 25, spec.FPS)
	assert.Equal(t, 10, spec.DurationSeconds)
	assert.Equal(t, int64(42), spec.Seed)
	assert.Equal(t, 50, spec.InferenceSteps)
	assert.Equal(t, 9.0, spec.GuidanceScale)
	assert.Equal(t, "rain", spec.NegativePrompt)
	assert.Equal(t, 250, spec.FrameCount())
}

func TestResolveValidationFailures(t *testing.T) {
	testCases := []struct {
		name  string
		req   domain.GenerationRequest
		field string
	}{
		{
			name:  "empty prompt",
			req:   domain.GenerationRequest{Prompt: ""},
			field: "prompt",
		},
		{
			name:  "non-positive width",
			req:   domain.GenerationRequest{Prompt: "x", Width: intPtr(0)},
			field: "width",
		},
		{
			name:  "width above ceiling",
			req:   domain.GenerationRequest{Prompt: "x", Width: intPtr(MaxDimension + 1)},
			field: "width",
		},
		{
			name:  "negative height",
			req:   domain.GenerationRequest{Prompt: "x", Height: intPtr(-1)},
			field: "height",
		},
		{
			name:  "non-positive fps",
			req:   domain.GenerationRequest{Prompt: "x", FPS: intPtr(0)},
			field: "fps",
		},
		{
			name:  "non-positive duration",
			req:   domain.GenerationRequest{Prompt: "x", DurationSeconds: intPtr(0)},
			field: "duration_seconds",
		},
		{
			name: "duration exceeds profile maximum",
			req: domain.GenerationRequest{
				Prompt:          "x",
				Profile:         "youtube_shorts",
				DurationSeconds: intPtr(61),
			},
			field: "duration_seconds",
		},
		{
			name:  "non-positive inference steps",
			req:   domain.GenerationRequest{Prompt: "x", InferenceSteps: intPtr(-5)},
			field: "inference_steps",
		},
		{
			name:  "non-positive guidance scale",
			req:   domain.GenerationRequest{Prompt: "x", GuidanceScale: float64Ptr(0)},
			field: "guidance_scale",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Resolve(tc.req)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrValidation)

			var vErr *ValidationError
			require.True(t, errors.As(err, &vErr))
			assert.Equal(t, tc.field, vErr.Field)
		})
	}
}

func TestResolveDurationAtProfileMaximum(t *testing.T) {
	spec, err := Resolve(domain.GenerationRequest{
		Prompt:          "x",
		Profile:         "instagram",
		DurationSeconds: intPtr(90),
	})
	require.NoError(t, err)
	assert.Equal(t, 90, spec.DurationSeconds)
}

func TestLookupIsCaseInsensitive(t *testing.T) {
	assert.Equal(t, "instagram", Lookup("Instagram").Name)
	assert.Equal(t, "default", Lookup("").Name)
}

func TestProfilesListsAllBuiltins(t *testing.T) {
	names := Profiles()
	assert.ElementsMatch(t, []string{"default", "instagram", "youtube_shorts", "youtube"}, names)
}
