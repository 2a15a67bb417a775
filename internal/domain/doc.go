// Package domain models earthquake early-warning (EEW) reports and the
// normalization rules shared by every feed adapter.
//
// # Data Sources
//
// Reports arrive from four independent public feeds, each polled on a short
// interval by the feed poller:
//
//   - Sichuan Earthquake Administration EEW ("sc-eew"): in-progress warnings
//     for the Sichuan region, revised several times per event.
//   - ICL EEW ("icl-eew"): Institute of Care-Life warning feed, similar
//     coverage but an independent detection network and its own field names.
//   - CEA EEW ("cea-eew"): national earthquake administration warning feed.
//   - CENC history ("cenc"): China Earthquake Networks Center catalog of
//     recently located quakes. Not a warning feed; its newest entry is
//     promoted to a report so confirmed quakes also raise an alert.
//
// A fifth synthetic kind ("test") exists for manually injected drills. Test
// reports behave like any other except that they are never evicted by the
// poller's per-cycle reconciliation; they live and die by their own timer.
//
// # Feed Conventions
//
// Every feed resolves to the same normalized [Snapshot]:
//
//	event identifier  synthesized from source|origin-time|lat|lon when the
//	                  feed omits one (see [SynthesizeID])
//	latitude/longitude/magnitude  NaN when absent or unparseable; a report
//	                  missing any of the three cannot place an alert
//	depth             kilometres; anything non-positive or unparseable
//	                  defaults to 10 km
//	origin time       opaque display string, never parsed or compared
//	report number     revision counter within one event, 0 when absent
//	supplied intensity  feed-reported maximum intensity; -1 means the feed
//	                  did not provide one (some feeds send -1 themselves as
//	                  the same sentinel)
//	cancel/final      flags that terminate the event's alert
//
// # Intensity Estimation
//
// When a report carries a usable magnitude, the displayed intensity is always
// recomputed from magnitude and depth:
//
//	I = round(1.5*M + 3.0 - 3.5*log10(depth)), clamped to [0, 12]
//
// The formula is only meaningful for damaging events, so magnitudes below 3.0
// (or unparseable ones) estimate to 0. A feed-supplied intensity is used only
// when recomputation is impossible. See [EstimateIntensity].
//
// # ID Generation
//
// Synthesized identifiers are deterministic SHA-256 short hashes of the
// report's key fields, so re-polling the same report maps onto the same
// active alert instead of duplicating it.
package domain
