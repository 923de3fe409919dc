package subscription

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/weatherbot/core/telegram/state"
	"github.com/m3rciful/weatherbot/internal/credential"
	"github.com/m3rciful/weatherbot/internal/geocode"
	"github.com/m3rciful/weatherbot/internal/subscriber"
	"github.com/m3rciful/weatherbot/internal/upstream"
	"github.com/m3rciful/weatherbot/internal/weather"
)

type sent struct {
	chatID   int64
	text     string
	location bool
}

type fakeMessenger struct {
	mu   sync.Mutex
	msgs []sent
}

func (f *fakeMessenger) SendText(_ context.Context, chatID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, sent{chatID: chatID, text: text})
	return nil
}

func (f *fakeMessenger) SendLocationRequest(_ context.Context, chatID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, sent{chatID: chatID, text: text, location: true})
	return nil
}

func (f *fakeMessenger) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.msgs))
	for _, m := range f.msgs {
		out = append(out, m.text)
	}
	return out
}

func (f *fakeMessenger) reset() {
	f.mu.Lock()
	f.msgs = nil
	f.mu.Unlock()
}

type fakeGeocoder struct {
	city string
	err  error
}

func (g fakeGeocoder) Resolve(context.Context, float64, float64) (string, error) {
	if g.err != nil {
		return geocode.UnknownLocation, g.err
	}
	return g.city, nil
}

type fakeWeather struct {
	calls  int
	keys   []string
	kelvin float64
	err    error
}

func (w *fakeWeather) Current(_ context.Context, _ string, key string) (weather.Conditions, error) {
	w.calls++
	w.keys = append(w.keys, key)
	if w.err != nil {
		return weather.Conditions{}, w.err
	}
	k := w.kelvin
	return weather.Conditions{Description: "clear sky", Kelvin: &k}, nil
}

// countingRepo records mutations on top of the in-memory repository.
type countingRepo struct {
	*subscriber.MemoryRepository
	mutations int
	listErr   error
}

func (r *countingRepo) Create(ctx context.Context, chatID int64, name string) (subscriber.Subscriber, error) {
	r.mutations++
	return r.MemoryRepository.Create(ctx, chatID, name)
}

func (r *countingRepo) SetBlocked(ctx context.Context, chatID int64, blocked bool) (subscriber.Subscriber, error) {
	r.mutations++
	return r.MemoryRepository.SetBlocked(ctx, chatID, blocked)
}

func (r *countingRepo) Delete(ctx context.Context, chatID int64) (subscriber.Subscriber, error) {
	r.mutations++
	return r.MemoryRepository.Delete(ctx, chatID)
}

func (r *countingRepo) List(ctx context.Context) ([]subscriber.Subscriber, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	return r.MemoryRepository.List(ctx)
}

type fixture struct {
	svc     *Service
	repo    *countingRepo
	out     *fakeMessenger
	weather *fakeWeather
	creds   *credential.Cell
	steps   *state.MemoryStore
}

func newFixture(t *testing.T, geo geocode.Resolver) *fixture {
	t.Helper()
	f := &fixture{
		repo:    &countingRepo{MemoryRepository: subscriber.NewMemoryRepository()},
		out:     &fakeMessenger{},
		weather: &fakeWeather{kelvin: 300},
		creds:   credential.NewCell("key-1"),
		steps:   state.NewMemoryStore(0),
	}
	svc, err := NewService(Deps{
		Repo:        f.repo,
		Geocoder:    geo,
		Weather:     f.weather,
		Credentials: f.creds,
		Messenger:   f.out,
		Steps:       f.steps,
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *fixture) seed(t *testing.T, chatID int64, blocked bool) {
	t.Helper()
	ctx := context.Background()
	_, err := f.repo.MemoryRepository.Create(ctx, chatID, "seed")
	require.NoError(t, err)
	if blocked {
		_, err = f.repo.MemoryRepository.SetBlocked(ctx, chatID, true)
		require.NoError(t, err)
	}
}

const berlinWeather = "Weather in Berlin:\nclear sky\nTemperature: 26.85°C"

func TestNewServiceRequiresDeps(t *testing.T) {
	_, err := NewService(Deps{})
	assert.Error(t, err)
}

func TestStartWelcomes(t *testing.T) {
	f := newFixture(t, fakeGeocoder{city: "Berlin"})
	require.NoError(t, f.svc.Start(context.Background(), 1, "Ada"))
	require.Len(t, f.out.msgs, 1)
	assert.Contains(t, f.out.msgs[0].text, "Hi Ada, welcome to the weather bot")
}

func TestRegistrationFlow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fakeGeocoder{city: "Berlin"})

	require.NoError(t, f.svc.Subscribe(ctx, 7))
	require.Len(t, f.out.msgs, 1)
	assert.True(t, f.out.msgs[0].location)
	assert.Equal(t, MsgSubscribePrompt, f.out.msgs[0].text)
	step, _ := f.steps.Get(ctx, 7)
	assert.Equal(t, StepAwaitSubscribeLocation, step)
	f.out.reset()

	require.NoError(t, f.svc.ShareLocation(ctx, 7, "Ada", 52.52, 13.40))

	list, err := f.repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Ada", list[0].Name)
	assert.True(t, f.svc.Active().Has(7))
	assert.Equal(t, []string{MsgRegistered, berlinWeather}, f.out.texts())
	assert.Equal(t, 1, f.weather.calls)
	assert.Equal(t, []string{"key-1"}, f.weather.keys)

	step, _ = f.steps.Get(ctx, 7)
	assert.Equal(t, state.StepIdle, step)
}

func TestLocationWithoutPromptStillRegisters(t *testing.T) {
	f := newFixture(t, fakeGeocoder{city: "Berlin"})
	require.NoError(t, f.svc.ShareLocation(context.Background(), 8, "Bo", 1, 2))
	assert.Equal(t, []string{MsgRegistered, berlinWeather}, f.out.texts())
	assert.True(t, f.svc.Active().Has(8))
}

func TestSubscribeExistingNotBlocked(t *testing.T) {
	f := newFixture(t, fakeGeocoder{city: "Berlin"})
	f.seed(t, 5, false)

	require.NoError(t, f.svc.Subscribe(context.Background(), 5))
	assert.Equal(t, 0, f.repo.mutations)
	assert.Equal(t, []string{MsgAlreadyRegistered}, f.out.texts())
}

func TestBlockedChatGetsNoticeOnly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fakeGeocoder{city: "Berlin"})
	f.seed(t, 6, true)

	require.NoError(t, f.svc.Subscribe(ctx, 6))
	assert.Equal(t, []string{MsgBlocked}, f.out.texts())
	f.out.reset()

	require.NoError(t, f.svc.Info(ctx, 6))
	assert.Equal(t, []string{MsgBlocked}, f.out.texts())
	f.out.reset()

	require.NoError(t, f.svc.ShareLocation(ctx, 6, "x", 1, 1))
	assert.Equal(t, []string{MsgBlocked}, f.out.texts())
	assert.Equal(t, 0, f.weather.calls)
	assert.Equal(t, 0, f.repo.mutations)
}

func TestGeocodeFailureLeavesNoRecord(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fakeGeocoder{err: geocode.ErrUnresolved})

	require.NoError(t, f.svc.ShareLocation(ctx, 9, "Ada", 0, 0))
	assert.Equal(t, 0, f.repo.mutations)
	assert.Equal(t, []string{MsgUnknownCity}, f.out.texts())
	assert.False(t, f.svc.Active().Has(9))
	assert.Equal(t, 0, f.weather.calls)
}

func TestUnknownLocationSentinelAbortsRegistration(t *testing.T) {
	f := newFixture(t, fakeGeocoder{city: geocode.UnknownLocation})
	require.NoError(t, f.svc.ShareLocation(context.Background(), 9, "Ada", 0, 0))
	assert.Equal(t, 0, f.repo.mutations)
	assert.Equal(t, []string{MsgUnknownCity}, f.out.texts())
}

func TestInfoFlow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fakeGeocoder{city: "Berlin"})
	f.seed(t, 11, false)

	require.NoError(t, f.svc.Info(ctx, 11))
	require.Len(t, f.out.msgs, 1)
	assert.True(t, f.out.msgs[0].location)
	assert.Equal(t, MsgInfoPrompt, f.out.msgs[0].text)
	f.out.reset()

	require.NoError(t, f.svc.ShareLocation(ctx, 11, "seed", 1, 1))
	assert.Equal(t, []string{berlinWeather}, f.out.texts())
	assert.Equal(t, 0, f.repo.mutations)
}

func TestWeatherFailureNotifiesUser(t *testing.T) {
	f := newFixture(t, fakeGeocoder{city: "Berlin"})
	f.weather.err = &upstream.StatusError{Provider: "weather", Status: 401}
	f.seed(t, 12, false)

	require.NoError(t, f.svc.ShareLocation(context.Background(), 12, "seed", 1, 1))
	assert.Equal(t, []string{MsgSomethingWentWrong}, f.out.texts())
	assert.Equal(t, 1, f.weather.calls)
}

func TestCredentialRotationAppliesToNextFetch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fakeGeocoder{city: "Berlin"})
	f.seed(t, 13, false)

	require.NoError(t, f.svc.ShareLocation(ctx, 13, "seed", 1, 1))
	f.creds.Set("key-2")
	require.NoError(t, f.svc.ShareLocation(ctx, 13, "seed", 1, 1))
	assert.Equal(t, []string{"key-1", "key-2"}, f.weather.keys)
}

func TestUnsubscribeThenInfo(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fakeGeocoder{city: "Berlin"})
	require.NoError(t, f.svc.ShareLocation(ctx, 20, "Ada", 1, 1))
	f.out.reset()

	require.NoError(t, f.svc.Unsubscribe(ctx, 20))
	assert.Equal(t, []string{MsgUnregistered}, f.out.texts())
	assert.False(t, f.svc.Active().Has(20))
	_, err := f.repo.FindByChatID(ctx, 20)
	assert.ErrorIs(t, err, subscriber.ErrNotFound)
	f.out.reset()

	require.NoError(t, f.svc.Info(ctx, 20))
	assert.Equal(t, []string{MsgNotSubscribed}, f.out.texts())
	f.out.reset()

	require.NoError(t, f.svc.Unsubscribe(ctx, 20))
	require.NoError(t, f.svc.Unsubscribe(ctx, 20))
	assert.Equal(t, []string{MsgNotRegistered, MsgNotRegistered}, f.out.texts())
}

func TestDuplicateCreateReportsFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fakeGeocoder{city: "Berlin"})
	dup := &duplicateRepo{countingRepo: f.repo}
	svc, err := NewService(Deps{
		Repo:        dup,
		Geocoder:    fakeGeocoder{city: "Berlin"},
		Weather:     f.weather,
		Credentials: f.creds,
		Messenger:   f.out,
	})
	require.NoError(t, err)

	require.NoError(t, svc.ShareLocation(ctx, 30, "Ada", 1, 1))
	assert.Equal(t, []string{MsgRegistrationFailed}, f.out.texts())
	assert.False(t, svc.Active().Has(30))
	assert.Equal(t, 0, f.weather.calls)
}

// duplicateRepo simulates another instance winning the create race.
type duplicateRepo struct{ *countingRepo }

func (d *duplicateRepo) Create(context.Context, int64, string) (subscriber.Subscriber, error) {
	return subscriber.Subscriber{}, subscriber.ErrDuplicate
}

func TestHelpRepromptsPendingStep(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fakeGeocoder{city: "Berlin"})

	require.NoError(t, f.svc.Help(ctx, 40))
	assert.Equal(t, []string{MsgHelp}, f.out.texts())
	f.out.reset()

	require.NoError(t, f.svc.Subscribe(ctx, 40))
	f.out.reset()
	require.NoError(t, f.svc.Help(ctx, 40))
	require.Len(t, f.out.msgs, 1)
	assert.True(t, f.out.msgs[0].location)
	assert.Equal(t, MsgAwaitingLocation, f.out.msgs[0].text)
}

func TestLoadActiveIncludesBlocked(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fakeGeocoder{city: "Berlin"})
	f.seed(t, 1, false)
	f.seed(t, 2, true)
	f.seed(t, 3, false)

	assert.Equal(t, 3, f.svc.LoadActive(ctx))
	assert.Equal(t, []int64{1, 2, 3}, f.svc.Active().Snapshot())

	f.svc.Shutdown(ctx)
	assert.Equal(t, 0, f.svc.Active().Len())
}

func TestLoadActiveFailureKeepsEmptySet(t *testing.T) {
	f := newFixture(t, fakeGeocoder{city: "Berlin"})
	f.repo.listErr = errors.New("db down")
	assert.Equal(t, 0, f.svc.LoadActive(context.Background()))
	assert.Equal(t, 0, f.svc.Active().Len())
}

func TestAdminOperations(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fakeGeocoder{city: "Berlin"})
	f.seed(t, 50, false)
	f.svc.LoadActive(ctx)

	rec, err := f.svc.Block(ctx, 50)
	require.NoError(t, err)
	assert.True(t, rec.Blocked)
	assert.True(t, f.svc.Active().Has(50))

	rec, err = f.svc.Unblock(ctx, 50)
	require.NoError(t, err)
	assert.False(t, rec.Blocked)

	list, err := f.svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = f.svc.Remove(ctx, 50)
	require.NoError(t, err)
	assert.False(t, f.svc.Active().Has(50))

	_, err = f.svc.Remove(ctx, 50)
	assert.ErrorIs(t, err, subscriber.ErrNotFound)
	_, err = f.svc.Block(ctx, 50)
	assert.ErrorIs(t, err, subscriber.ErrNotFound)
}

func TestActiveSetConcurrentUse(t *testing.T) {
	s := NewActiveSet()
	var wg sync.WaitGroup
	for i := int64(0); i < 50; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			s.Add(id)
			_ = s.Has(id)
			if id%2 == 0 {
				s.Remove(id)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 25, s.Len())
}
