package detect

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Scan cycle outcomes reported to the ScanRecorder.
const (
	OutcomeMatched   = "matched"
	OutcomeExhausted = "exhausted"
	OutcomeCancelled = "cancelled"
	OutcomeError     = "error"
)

// scanJob is one queued or running scan. Cancellation of a queued job drops
// it uninvoked; cancellation of a running job is observed cooperatively
// between candidate evaluations.
type scanJob struct {
	req    ScanRequest
	ctx    context.Context
	cancel context.CancelFunc
}

// DetectorConfig configures a Detector.
type DetectorConfig struct {
	// Engine performs the actual matching. Required.
	Engine *Engine
	// TrySelect is the consumer callback deciding whether to activate a
	// candidate. Required.
	TrySelect TrySelectFunc
	// TopologyNotifier signals hardware topology changes. Optional.
	TopologyNotifier Notifier
	// FocusNotifier signals application focus switches, on which the
	// detector performs a non-cancelling Bluetooth poll. Optional.
	FocusNotifier Notifier
	// Catalog computes the default driver filter when a scan is submitted
	// without an explicit one. Optional; nil means no default filter.
	Catalog DriverCatalog
	// Recorder receives scan cycle records. Optional; defaults to a noop.
	Recorder ScanRecorder
}

// Detector owns a single background worker that scans available hardware and
// reports the first accepted driver/device pairing through TrySelect.
// Submission is safe from any goroutine; only one scan runs at a time and at
// most one more is queued, with a newer submission displacing an unstarted
// queued one.
type Detector struct {
	engine    *Engine
	trySelect TrySelectFunc
	catalog   DriverCatalog
	recorder  ScanRecorder

	mu                  sync.Mutex
	detectUSB           bool
	detectBluetooth     bool
	limitToDrivers      []string
	pending             *scanJob
	running             *scanJob
	closed              bool
	unsubscribeTopology func()
	unsubscribeFocus    func()

	wake chan struct{}
	quit chan struct{}
	done chan struct{}
}

// NewDetector starts the background worker and subscribes to the configured
// notification sources. A scan is not queued automatically; callers normally
// follow up with Rescan.
func NewDetector(cfg DetectorConfig) (*Detector, error) {
	if cfg.Engine == nil {
		return nil, errors.New("detect: engine cannot be nil")
	}
	if cfg.TrySelect == nil {
		return nil, errors.New("detect: TrySelect callback cannot be nil")
	}
	rec := cfg.Recorder
	if rec == nil {
		rec = noopScanRecorder{}
	}
	d := &Detector{
		engine:          cfg.Engine,
		trySelect:       cfg.TrySelect,
		catalog:         cfg.Catalog,
		recorder:        rec,
		detectUSB:       true,
		detectBluetooth: true,
		wake:            make(chan struct{}, 1),
		quit:            make(chan struct{}),
		done:            make(chan struct{}),
	}
	if cfg.TopologyNotifier != nil {
		d.unsubscribeTopology = cfg.TopologyNotifier.Subscribe(d.handleTopologyChange)
	}
	if cfg.FocusNotifier != nil {
		d.unsubscribeFocus = cfg.FocusNotifier.Subscribe(d.PollBluetoothDevices)
	}
	go d.worker()
	return d, nil
}

// queueScan submits a scan. The submission parameters become the detector's
// current configuration for subsequent notification-triggered scans. Any
// queued-but-not-started job is displaced and dropped.
func (d *Detector) queueScan(usb, bluetooth bool, limit []string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	if limit == nil && d.catalog != nil {
		// Computed fresh at submission time so a live configuration
		// change takes effect on the next scan.
		limit = d.catalog.EnabledAutoDetectDrivers()
	}
	d.detectUSB = usb
	d.detectBluetooth = bluetooth
	d.limitToDrivers = limit
	if d.pending != nil {
		d.pending.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	d.pending = &scanJob{
		req:    ScanRequest{USB: usb, Bluetooth: bluetooth, LimitToDrivers: limit},
		ctx:    ctx,
		cancel: cancel,
	}
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// stopScan cancels the running scan cooperatively and drops any queued job.
func (d *Detector) stopScan() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running != nil {
		d.running.cancel()
	}
	if d.pending != nil {
		d.pending.cancel()
		d.pending = nil
	}
}

// Stop cancels the in-flight scan, if any, and drops any queued scan. The
// detector stays usable; the next trigger starts a fresh scan.
func (d *Detector) Stop() {
	d.stopScan()
}

// Rescan stops any current scan, invalidates the Bluetooth cache so new
// devices can be picked up, and submits a fresh scan. A nil limit applies
// the catalog's default driver filter.
func (d *Detector) Rescan(usb, bluetooth bool, limit []string) {
	d.stopScan()
	d.engine.source.invalidateBluetoothCache()
	d.queueScan(usb, bluetooth, limit)
}

// handleTopologyChange reacts to a hardware topology notification by
// rescanning with the currently configured Bluetooth mode and driver filter.
func (d *Detector) handleTopologyChange() {
	d.mu.Lock()
	bluetooth := d.detectBluetooth
	limit := d.limitToDrivers
	d.mu.Unlock()
	log.Debug().Msg("detect: hardware topology changed, rescanning")
	d.Rescan(true, bluetooth, limit)
}

// PollBluetoothDevices queues a lightweight Bluetooth refresh. Unlike Rescan
// it does not cancel a running scan and does not invalidate the cache. It is
// a no-op when Bluetooth detection is disabled or no cached Bluetooth result
// exists yet.
func (d *Detector) PollBluetoothDevices() {
	d.mu.Lock()
	bluetooth := d.detectBluetooth
	limit := d.limitToDrivers
	d.mu.Unlock()
	if !bluetooth {
		return
	}
	if cached, ok := d.engine.source.bluetoothCache(); !ok || len(cached) == 0 {
		return
	}
	d.queueScan(false, bluetooth, limit)
}

// Terminate deregisters from notification sources, stops scanning,
// invalidates the Bluetooth cache and shuts the worker down. It only blocks
// long enough to signal shutdown; an in-flight scan winds down on its own
// after observing cancellation.
func (d *Detector) Terminate() {
	d.mu.Lock()
	alreadyClosed := d.closed
	d.closed = true
	unsubFocus := d.unsubscribeFocus
	unsubTopology := d.unsubscribeTopology
	d.unsubscribeFocus = nil
	d.unsubscribeTopology = nil
	d.mu.Unlock()

	if unsubFocus != nil {
		unsubFocus()
	}
	if unsubTopology != nil {
		unsubTopology()
	}
	d.stopScan()
	d.engine.source.invalidateBluetoothCache()
	if !alreadyClosed {
		close(d.quit)
	}
}

// Done is closed once the worker goroutine has exited.
func (d *Detector) Done() <-chan struct{} { return d.done }

func (d *Detector) worker() {
	defer close(d.done)
	for {
		d.mu.Lock()
		job := d.pending
		d.pending = nil
		if job != nil {
			d.running = job
		}
		d.mu.Unlock()

		if job == nil {
			select {
			case <-d.quit:
				return
			case <-d.wake:
				continue
			}
		}

		if job.ctx.Err() == nil {
			d.runScan(job)
		}
		job.cancel()
		d.mu.Lock()
		d.running = nil
		d.mu.Unlock()
	}
}

// runScan walks the scan handler chain for one cycle. Cancellation is
// checked between candidate evaluations, never mid-candidate. A panic from a
// collaborator terminates the cycle but leaves the detector usable.
func (d *Detector) runScan(job *scanJob) {
	start := time.Now()
	outcome := OutcomeExhausted
	var matched Candidate
	var cycleErr error
	candidates := 0

	defer func() {
		if r := recover(); r != nil {
			outcome = OutcomeError
			cycleErr = errors.Errorf("scan collaborator panicked: %v", r)
			log.Error().
				Interface("panic", r).
				Str("stack", string(debug.Stack())).
				Msg("detect: scan cycle aborted by panic")
		}
		d.recordCycle(job.req, start, outcome, matched, candidates, cycleErr)
	}()

	snap := d.engine.source.newSnapshot()
	for _, handler := range d.engine.scanHandlers() {
		if job.ctx.Err() != nil {
			outcome = OutcomeCancelled
			return
		}
		for c, err := range handler(job.ctx, job.req, snap) {
			if err != nil {
				outcome = OutcomeError
				cycleErr = err
				log.Error().Err(err).Msg("detect: scan cycle failed")
				return
			}
			if job.ctx.Err() != nil {
				outcome = OutcomeCancelled
				return
			}
			candidates++
			if d.trySelect(c.Driver, c.Match) {
				outcome = OutcomeMatched
				matched = c
				log.Info().
					Str("driver", c.Driver).
					Str("id", c.Match.ID).
					Str("kind", string(c.Match.Kind)).
					Msg("detect: driver accepted device")
				return
			}
			if job.ctx.Err() != nil {
				outcome = OutcomeCancelled
				return
			}
		}
	}
	if job.ctx.Err() != nil {
		outcome = OutcomeCancelled
		return
	}
	log.Debug().
		Int("candidates", candidates).
		Msg("detect: scan exhausted without a match")
}

func (d *Detector) recordCycle(req ScanRequest, start time.Time, outcome string, matched Candidate, candidates int, cycleErr error) {
	rec := &ScanCycleRecord{
		StartAt:        start,
		EndAt:          time.Now(),
		USB:            req.USB,
		Bluetooth:      req.Bluetooth,
		LimitToDrivers: req.LimitToDrivers,
		Outcome:        outcome,
		Candidates:     candidates,
	}
	if outcome == OutcomeMatched {
		rec.Driver = matched.Driver
		rec.DeviceID = matched.Match.ID
	}
	if cycleErr != nil {
		rec.Error = cycleErr.Error()
	}
	ctx, cancelRecord := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelRecord()
	if err := d.recorder.RecordCycle(ctx, rec); err != nil {
		log.Error().Err(err).Msg("detect: scan recorder failed")
	}
}
