package notify

const emailTemplates = `
{{define "header"}}<div style="font-family:Arial,sans-serif;max-width:600px;margin:0 auto">{{end}}
{{define "footer"}}<p style="color:#888;font-size:12px">Request ID: {{.RequestID}}</p></div>{{end}}

{{define "details"}}<table style="border-collapse:collapse">
<tr><td><b>Customer</b></td><td>{{.CustomerName}} &lt;{{.CustomerEmail}}&gt;</td></tr>
<tr><td><b>Location</b></td><td>{{.SiteLocation}}</td></tr>
<tr><td><b>Support type</b></td><td>{{.SupportType}}</td></tr>
{{if .RequestedDate}}<tr><td><b>Requested date</b></td><td>{{.RequestedDate}}</td></tr>{{end}}
</table>{{end}}

{{define "request_created_admin"}}{{template "header"}}
<h2>New support request</h2>
{{template "details" .}}
<p><b>Problem</b></p><p>{{.ProblemDesc}}</p>
{{template "footer" .}}{{end}}

{{define "request_created_customer"}}{{template "header"}}
<h2>Thank you, {{.CustomerName}}</h2>
<p>Your support request has been received and is waiting for review.</p>
{{template "details" .}}
{{template "footer" .}}{{end}}

{{define "request_scheduled"}}{{template "header"}}
<h2>Your visit is scheduled</h2>
<p>A technician will attend on <b>{{datetime .ScheduledDate}}</b>{{if .DurationHours}} for about {{.DurationHours}} hour(s){{end}}.</p>
{{template "details" .}}
{{template "footer" .}}{{end}}

{{define "request_rejected"}}{{template "header"}}
<h2>Request not approved</h2>
<p>Your support request was not approved.{{if .Reason}} Reason: {{.Reason}}{{end}}</p>
{{template "details" .}}
{{template "footer" .}}{{end}}

{{define "visit_completed"}}{{template "header"}}
<h2>Your support visit is complete</h2>
<p>{{.ActualHours}} hour(s) were deducted from your support quota.</p>
<p><a href="{{.ConfirmURL}}">Confirm the visit</a></p>
{{template "details" .}}
{{template "footer" .}}{{end}}

{{define "visit_rejected"}}{{template "header"}}
<h2>Visit could not be completed</h2>
<p>{{.Reason}}</p>
<p>No hours were deducted from your quota.</p>
{{template "footer" .}}{{end}}

{{define "visit_confirmed"}}{{template "header"}}
<h2>Visit confirmed</h2>
<p>{{.CustomerName}} confirmed the visit at {{.SiteLocation}}.</p>
{{if .CustomerNotes}}<p>Notes: {{.CustomerNotes}}</p>{{end}}
{{template "footer" .}}{{end}}
`
