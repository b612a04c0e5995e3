// Package domain models hydrometric station readings and alert subscriptions.
//
// # Data Source
//
// Readings originate from the Allerta Meteo Emilia-Romagna sensor network
// (https://allertameteo.regione.emilia-romagna.it). The upstream API exposes
// the hydrometric level variable (B13215) through two endpoints: a snapshot
// listing every station with its static metadata, and a per-station time
// series from which the latest reading is taken.
//
// # Sensor Data Conventions
//
// Timestamps:
//
//	Epoch milliseconds. The per-station series may deliver the "t" field as a
//	JSON number or as a string holding a number; both forms occur in the wild
//	and both are accepted.
//
// Unknown values:
//
//	The network encodes "no value" as the reserved constant -9999 rather than
//	omitting the field, because the store keeps every attribute as a typed
//	number. [UnknownValue] must never be treated as a real reading: it is
//	excluded from alert evaluation and from level classification.
//
// Alert thresholds:
//
//	Each station carries up to three reference levels (soglia1/2/3 upstream):
//	yellow, orange, and red. Any of them may be unknown. The red threshold is
//	the only station attribute allowed a single unknown-to-known upgrade after
//	the record is first written; see the store package for the write rules.
//
// Coordinates:
//
//	Longitude and latitude arrive as strings and are stored verbatim. They are
//	display metadata, never computed on, so no numeric parsing happens here.
package domain
