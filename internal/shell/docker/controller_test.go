package docker

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/artpar/ngreen/internal/core/compose"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Mock Client
// =============================================================================

type mockClient struct {
	Client // embed interface to satisfy it; unused methods panic

	calls      []string
	created    []ContainerSpec
	networks   []NetworkSpec
	volumes    []VolumeSpec
	pulled     []string
	images     map[string]bool
	imageErr   error
	createErr  map[string]error // by container name
	startErr   error
	removeErr  error
	containers []ContainerInfo
	netList    []NetworkInfo
	volList    []string
	lastSelect ListOptions
}

func newMockClient() *mockClient {
	return &mockClient{images: map[string]bool{}, createErr: map[string]error{}}
}

func (m *mockClient) CreateContainer(ctx context.Context, spec ContainerSpec) (string, error) {
	m.calls = append(m.calls, "create:"+spec.Name)
	if err := m.createErr[spec.Name]; err != nil {
		return "", err
	}
	m.created = append(m.created, spec)
	return "id-" + spec.Name, nil
}

func (m *mockClient) StartContainer(ctx context.Context, id string) error {
	m.calls = append(m.calls, "start:"+id)
	return m.startErr
}

func (m *mockClient) StopContainer(ctx context.Context, id string, timeout *time.Duration) error {
	m.calls = append(m.calls, "stop:"+id)
	return nil
}

func (m *mockClient) RemoveContainer(ctx context.Context, id string, opts RemoveOptions) error {
	m.calls = append(m.calls, "remove:"+id)
	return m.removeErr
}

func (m *mockClient) ListContainers(ctx context.Context, opts ListOptions) ([]ContainerInfo, error) {
	m.lastSelect = opts
	return m.containers, nil
}

func (m *mockClient) CreateNetwork(ctx context.Context, spec NetworkSpec) (string, error) {
	m.networks = append(m.networks, spec)
	return "net-" + spec.Name, nil
}

func (m *mockClient) RemoveNetwork(ctx context.Context, id string) error {
	m.calls = append(m.calls, "remove-network:"+id)
	return nil
}

func (m *mockClient) ListNetworks(ctx context.Context, opts ListOptions) ([]NetworkInfo, error) {
	return m.netList, nil
}

func (m *mockClient) CreateVolume(ctx context.Context, spec VolumeSpec) (string, error) {
	m.volumes = append(m.volumes, spec)
	return spec.Name, nil
}

func (m *mockClient) RemoveVolume(ctx context.Context, name string, force bool) error {
	m.calls = append(m.calls, "remove-volume:"+name)
	return nil
}

func (m *mockClient) ListVolumes(ctx context.Context, opts ListOptions) ([]string, error) {
	return m.volList, nil
}

func (m *mockClient) ImageExists(ctx context.Context, image string) (bool, error) {
	if m.imageErr != nil {
		return false, m.imageErr
	}
	return m.images[image], nil
}

func (m *mockClient) PullImage(ctx context.Context, image string, opts PullOptions) error {
	m.pulled = append(m.pulled, image)
	return nil
}

const shopTemplate = `
services:
  web:
    image: registry.local/shop:${APP_VERSION}
    ports:
      - "80"
    depends_on:
      - api
    volumes:
      - ./static:/srv/static:ro
  api:
    image: registry.local/shop-api:${APP_VERSION}
    volumes:
      - data:/var/lib/shop
volumes:
  data:
`

func newTestController(m *mockClient, template string) *Controller {
	return NewController(m, ControllerOptions{Template: template, WorkingDir: "/srv/shop"}, nil)
}

// =============================================================================
// BringUp Tests
// =============================================================================

func TestController_BringUp(t *testing.T) {
	m := newMockClient()
	m.images["registry.local/shop-api:v2"] = true
	c := newTestController(m, shopTemplate)

	err := c.BringUp(context.Background(), "shop-5001", 5001, "v2")
	require.NoError(t, err)

	require.Len(t, m.networks, 1)
	assert.Equal(t, "shop-5001_default", m.networks[0].Name)
	assert.Equal(t, "shop-5001", m.networks[0].Labels[compose.LabelProject])

	require.Len(t, m.volumes, 1)
	assert.Equal(t, "shop-5001_data", m.volumes[0].Name)

	assert.Equal(t, []string{"registry.local/shop:v2"}, m.pulled)

	// api starts before web
	assert.Equal(t, []string{
		"create:shop-5001-api-1", "start:id-shop-5001-api-1",
		"create:shop-5001-web-1", "start:id-shop-5001-web-1",
	}, m.calls)

	web := m.created[1]
	require.Len(t, web.Ports, 1)
	assert.Equal(t, PortBinding{ContainerPort: 80, HostPort: 5001, Protocol: "tcp"}, web.Ports[0])
	assert.Equal(t, []string{"shop-5001_default"}, web.Networks)
	assert.Equal(t, []string{"web"}, web.NetworkAliases["shop-5001_default"])
	assert.Equal(t, "v2", web.Labels[compose.LabelVersion])
	require.Len(t, web.Volumes, 1)
	assert.Equal(t, MountTypeBind, web.Volumes[0].Type)
	assert.Equal(t, "/srv/shop/static", web.Volumes[0].Source)

	api := m.created[0]
	require.Len(t, api.Volumes, 1)
	assert.Equal(t, MountTypeVolume, api.Volumes[0].Type)
	assert.Equal(t, "shop-5001_data", api.Volumes[0].Source)
}

func TestController_BringUp_ImageLookupErrorFallsBackToPull(t *testing.T) {
	m := newMockClient()
	m.imageErr = errors.New("daemon timeout")
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	c := NewController(m, ControllerOptions{Template: shopTemplate, WorkingDir: "/srv/shop"}, logger)

	require.NoError(t, c.BringUp(context.Background(), "shop-5001", 5001, "v2"))

	assert.ElementsMatch(t, []string{"registry.local/shop:v2", "registry.local/shop-api:v2"}, m.pulled)
	assert.Contains(t, logs.String(), "image lookup failed")
	assert.Contains(t, logs.String(), "daemon timeout")
}

func TestController_BringUp_StartFailureRemovesCreated(t *testing.T) {
	m := newMockClient()
	m.startErr = NewDockerError("StartContainer", "container", "x", "bind failed", ErrPortAlreadyAllocated)
	c := newTestController(m, shopTemplate)

	err := c.BringUp(context.Background(), "shop-5001", 5001, "v2")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPortAlreadyAllocated)
	assert.Contains(t, m.calls, "remove:id-shop-5001-api-1")
}

func TestController_BringUp_CreateFailure(t *testing.T) {
	m := newMockClient()
	m.createErr["shop-5001-web-1"] = errors.New("no space left")
	c := newTestController(m, shopTemplate)

	err := c.BringUp(context.Background(), "shop-5001", 5001, "v2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "web")
	assert.Contains(t, m.calls, "remove:id-shop-5001-api-1")
}

func TestController_BringUp_RejectsBuildOnlyService(t *testing.T) {
	m := newMockClient()
	c := newTestController(m, "services:\n  web:\n    build: .\n    ports:\n      - \"80\"\n")

	err := c.BringUp(context.Background(), "shop-5000", 5000, "v1")
	assert.ErrorIs(t, err, ErrBuildUnsupported)
	assert.Empty(t, m.networks)
}

func TestController_BringUp_RenderError(t *testing.T) {
	m := newMockClient()
	c := newTestController(m, "services:\n  worker:\n    image: busybox\n")

	err := c.BringUp(context.Background(), "shop-5000", 5000, "v1")
	assert.ErrorIs(t, err, compose.ErrNoIngress)
}

// =============================================================================
// BringDown Tests
// =============================================================================

func TestController_BringDown(t *testing.T) {
	m := newMockClient()
	m.containers = []ContainerInfo{{ID: "c1", Name: "shop-5001-web-1"}, {ID: "c2", Name: "shop-5001-api-1"}}
	m.netList = []NetworkInfo{{ID: "n1", Name: "shop-5001_default"}}
	m.volList = []string{"shop-5001_data"}
	c := newTestController(m, shopTemplate)

	require.NoError(t, c.BringDown(context.Background(), "shop-5001"))

	assert.True(t, m.lastSelect.All)
	assert.Equal(t, "shop-5001", m.lastSelect.Labels[compose.LabelProject])
	assert.Equal(t, []string{
		"stop:c1", "remove:c1",
		"stop:c2", "remove:c2",
		"remove-network:n1",
		"remove-volume:shop-5001_data",
	}, m.calls)
}

func TestController_BringDown_StopsDependentsFirst(t *testing.T) {
	m := newMockClient()
	slotLabels := func(service string) map[string]string {
		return map[string]string{
			compose.LabelProject: "shop-5001",
			compose.LabelPort:    "5001",
			compose.LabelVersion: "v2",
			compose.LabelService: service,
		}
	}
	m.containers = []ContainerInfo{
		{ID: "c-api", Name: "shop-5001-api-1", Labels: slotLabels("api")},
		{ID: "c-old", Name: "shop-5001-cache-1", Labels: slotLabels("cache")},
		{ID: "c-web", Name: "shop-5001-web-1", Labels: slotLabels("web")},
	}
	c := newTestController(m, shopTemplate)

	require.NoError(t, c.BringDown(context.Background(), "shop-5001"))

	// web depends on api; cache is no longer in the template
	assert.Equal(t, []string{
		"stop:c-web", "remove:c-web",
		"stop:c-api", "remove:c-api",
		"stop:c-old", "remove:c-old",
	}, m.calls[:6])
}

func TestController_BringDown_NothingToRemove(t *testing.T) {
	m := newMockClient()
	c := newTestController(m, shopTemplate)
	assert.NoError(t, c.BringDown(context.Background(), "shop-5009"))
}

func TestController_BringDown_NotFoundIsSuccess(t *testing.T) {
	m := newMockClient()
	m.containers = []ContainerInfo{{ID: "c1"}}
	m.removeErr = NewDockerError("RemoveContainer", "container", "c1", "container not found", ErrContainerNotFound)
	c := newTestController(m, shopTemplate)
	assert.NoError(t, c.BringDown(context.Background(), "shop-5001"))
}

func TestController_BringDown_ReportsFailures(t *testing.T) {
	m := newMockClient()
	m.containers = []ContainerInfo{{ID: "c1"}}
	m.removeErr = errors.New("device busy")
	c := newTestController(m, shopTemplate)

	err := c.BringDown(context.Background(), "shop-5001")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "device busy"))
}
