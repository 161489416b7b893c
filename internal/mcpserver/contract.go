package mcpserver

// EventFormatContract describes the YAML event document accepted by
// create_event and stored in the seed directory.
const EventFormatContract = `# Agenda Event Document Format

Every event is one YAML document. The keys mirror the event backend's
columns so that documents can be moved between sources unchanged.

## Structure

` + "```" + `yaml
id: jazz-2024               # REQUIRED - stable identifier, also the file name stem
name: Jazz en la plaza      # REQUIRED
event_type: music           # category used by the tag bar filter
start_date: 2024-07-01      # REQUIRED - YYYY-MM-DD
end_date: 2024-07-05        # OPTIONAL - defaults to start_date
description: Conciertos al aire libre
address: Plaza Nueva 1
city: Sevilla
country: España
latitude: 37.389            # -90..90
longitude: -5.995           # -180..180
rating: 4.5                 # 0..5, half stars are rendered
mainimage: https://example.org/jazz.jpg
gallery:
  - https://example.org/jazz-1.jpg
` + "```" + `

## Rules

1. Dates are calendar days without a time of day. A timestamp such as
   ` + "`" + `2024-07-01T20:00:00Z` + "`" + ` is truncated to its date.
2. ` + "`" + `end_date` + "`" + ` must not be before ` + "`" + `start_date` + "`" + `.
3. Unknown keys are rejected.
4. ` + "`" + `event_type` + "`" + ` is lowercase; reuse an existing category from
   ` + "`" + `list_categories` + "`" + ` where one fits.
5. Encoding is UTF-8. Values may use any language; keys are English.

## Date range selection

The calendar selects a range with two taps. The first tap opens the range
at that day; the second closes it, swapping the endpoints when it lands
before the first. A third tap starts over. Events are shown when their
own [start_date, end_date] span overlaps the closed range.
`
