package pipeline

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/roadfeat/internal/road"
	"github.com/sells-group/roadfeat/pkg/geocode"
)

type mockSource struct {
	mock.Mock
}

func (m *mockSource) Segments(ctx context.Context, city string, box geocode.BBox) ([]road.Segment, error) {
	args := m.Called(ctx, city, box)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]road.Segment), args.Error(1)
}

type mockResolver struct {
	mock.Mock
}

func (m *mockResolver) Resolve(ctx context.Context, query string) (*geocode.BBox, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*geocode.BBox), args.Error(1)
}
