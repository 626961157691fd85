// Package domain models normalized disaster incident records.
//
// # Data Sources
//
// Incidents are assembled from six public real-time feeds: NASA EONET
// wildfire hotspots, NASA EONET open environmental events, the USGS 4.5+
// magnitude earthquake GeoJSON feed, ReliefWeb situation reports, Mastodon
// posts under an emergency hashtag, and an oracle-backed news scan. Manual
// operator reports and the voice dispatch subsystem inject incidents through
// the same merge contract.
//
// # Triage
//
// Every raw item is judged by an external triage oracle that returns a
// structured verdict: relevance, an urgency tier, a 0-100 risk score, a
// rationale, a recommended action, and an optionally detected location.
// The three urgency tiers:
//
//	RED    — immediate danger, life threatening
//	YELLOW — urgent but stable (supplies, power, shelter)
//	GREEN  — safe, news, general updates
//
// Oracle output that cannot be parsed or repaired degrades to a fixed
// fallback verdict (relevant, YELLOW, risk 50) so that a misbehaving oracle
// never stalls ingestion. See [Result] and [FallbackResult].
//
// # ID Generation
//
// Incident IDs follow the scheme "<source>-<event millis>-<disambiguator>".
// The random disambiguator means IDs are not content-addressed: re-fetching
// the same upstream item with a different event timestamp produces a new
// record. Dedup inside the store is by exact ID match. See [NewIncidentID].
package domain
