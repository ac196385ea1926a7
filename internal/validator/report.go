package validator

import (
	"encoding/json"
	"html/template"
	"io"
)

// WriteJSON serializes a Report as indented JSON, for machine consumption
// (CI gating, the original implementation's benchmark harness).
func WriteJSON(w io.Writer, report Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// reportTemplate renders a Report as a small standalone HTML page for human
// review. html/template (not text/template) is used deliberately: every
// value it renders is validator-computed, not untrusted input, but the
// contextual auto-escaping costs nothing and rules out a class of bugs if a
// future caller ever threads a recording's file name or label through here.
func mulHundred(f float64) float64 { return f * 100 }

var reportTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"mulHundred": mulHundred,
}).Parse(`<!DOCTYPE html>
<html>
<head><title>Transcription Quality Report</title></head>
<body>
<h1>Quality Report: {{.Level}}</h1>
<table border="1" cellpadding="4">
<tr><th>Metric</th><th>Value</th></tr>
<tr><td>WER</td><td>{{printf "%.2f%%" (mulHundred .WER.WER)}}</td></tr>
<tr><td>CER</td><td>{{printf "%.2f%%" (mulHundred .CER.CER)}}</td></tr>
<tr><td>SA-WER</td><td>{{printf "%.2f%%" (mulHundred .SAWER.SAWER)}}</td></tr>
<tr><td>Speaker attribution accuracy</td><td>{{printf "%.2f%%" (mulHundred .SAWER.AttributionAccuracy)}}</td></tr>
<tr><td>DER</td><td>{{printf "%.2f%%" (mulHundred .DER.DER)}}</td></tr>
<tr><td>Overlap accuracy</td><td>{{printf "%.2f%%" (mulHundred .OverlapAccuracy)}}</td></tr>
</table>
<h2>Per-speaker WER</h2>
<table border="1" cellpadding="4">
<tr><th>Speaker</th><th>WER</th></tr>
{{range $speaker, $wer := .SAWER.PerSpeakerWER}}<tr><td>{{$speaker}}</td><td>{{printf "%.2f%%" (mulHundred $wer)}}</td></tr>
{{end}}</table>
</body>
</html>
`))

// WriteHTML renders report as a standalone HTML page.
func WriteHTML(w io.Writer, report Report) error {
	return reportTemplate.Execute(w, report)
}
