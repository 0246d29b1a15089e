// Package domain models satellite fire-detection data.
//
// # Data Sources
//
// Hotspot detections come from NASA FIRMS (Fire Information for Resource
// Management System) area queries, https://firms.modaps.eosdis.nasa.gov/.
// Each configured source is a sensor constellation product:
//
//	VIIRS_NOAA20_NRT  375m resolution, twice-daily coverage
//	VIIRS_SNPP_NRT    375m resolution, twice-daily coverage
//	MODIS_NRT         1km resolution, four passes daily (Aqua + Terra)
//
// The area API returns a comma-separated table, one row per detection, with
// a header row naming at minimum: latitude, longitude, brightness,
// bright_t31, frp, confidence, daynight, acq_date, acq_time, satellite,
// scan, track, instrument, version.
//
// # Confidence Conventions
//
// The feed encodes detection confidence inconsistently across constellations:
//
//	VIIRS: categorical — "l" (low), "n" (nominal), "h" (high)
//	MODIS: percentage — 0-100
//
// [NormalizeConfidence] collapses both encodings to a float in [0,1]:
// l/low → 0.3, n/nominal → 0.6, h/high → 0.9, other categorical → 0.5,
// numeric already in [0,1] unchanged, numeric in (1,100] divided by 100,
// anything else → 0.5.
//
// # Fire Radiative Power
//
// The frp column is Fire Radiative Power in megawatts, a thermal-intensity
// proxy. Detections backed by high radiative power are more trustworthy, so
// [Classify] nudges confidence upward before tiering: frp > 500 MW adds
// 0.1, frp > 100 MW adds 0.05, capped at 0.99.
//
// # Timestamps
//
// Detection time combines the acq_date column (YYYY-MM-DD) with acq_time
// (HHMM, 24-hour UTC, three-digit values zero-padded: "930" → "0930").
// Rows with an unparseable date fall back to the query time.
//
// # Synthetic Data
//
// When the service runs against the synthetic event source instead of the
// live feed, every fabricated detection carries the source tag "demo".
// Nothing downstream may strip that tag; consumers rely on it to tell
// authoritative satellite data from placeholders.
package domain
