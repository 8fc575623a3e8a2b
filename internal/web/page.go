package web

import "html/template"

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Chatbot</title>
<style>
  * { box-sizing: border-box; }
  body { margin: 0; display: flex; min-height: 100vh; font-family: -apple-system, "Segoe UI", Roboto, sans-serif; color: #1f2328; }
  aside { width: 280px; padding: 1.5rem; background: #f0f2f6; }
  aside label { display: block; font-size: .9rem; margin-bottom: .4rem; }
  aside input[type=text] { width: 100%; padding: .5rem; border: 1px solid #ccc; border-radius: 6px; }
  aside a { display: block; margin-top: 1rem; font-size: .85rem; color: #0969da; }
  main { flex: 1; display: flex; flex-direction: column; max-width: 760px; margin: 0 auto; padding: 1.5rem; }
  .caption { color: #6e7781; margin-top: -.5rem; }
  .msg { padding: .75rem 1rem; margin: .5rem 0; border-radius: 8px; }
  .msg.user { background: #f6f8fa; }
  .msg.assistant { background: #fff; border: 1px solid #eaeef2; }
  .msg .role { font-size: .75rem; text-transform: uppercase; color: #6e7781; }
  .info { background: #ddf4ff; padding: .75rem 1rem; border-radius: 8px; }
  .error { background: #ffebe9; padding: .75rem 1rem; border-radius: 8px; white-space: pre-wrap; }
  form.input { display: flex; gap: .5rem; margin-top: auto; padding-top: 1rem; }
  form.input input { flex: 1; padding: .75rem; border: 1px solid #ccc; border-radius: 8px; }
  button { padding: .5rem 1rem; border-radius: 6px; border: 1px solid #ccc; background: #fff; cursor: pointer; }
</style>
</head>
<body>
<aside>
  <form method="post" action="/agent">
    <label for="agent_rid">AIP Agent RID</label>
    <input type="text" id="agent_rid" name="agent_rid" value="{{.AgentRID}}" onchange="this.form.submit()">
  </form>
  <a href="https://www.palantir.com/docs/foundry/agent-studio/overview/">Create an AIP Agent</a>
  <a href="https://www.palantir.com/docs/foundry/ontology-sdk/create-a-new-osdk/#create-a-new-developer-console-application">Create an OAuth Client</a>
  <form method="post" action="/reset" style="margin-top:1.5rem"><button type="submit">New conversation</button></form>
</aside>
<main>
  <h1>💬 Chatbot</h1>
  <p class="caption">🚀 A chatbot powered by AIP Agents</p>
  {{range .Messages}}
  <div class="msg {{.Role}}"><div class="role">{{.Role}}</div>{{.Body}}</div>
  {{end}}
  {{if .Info}}<div class="info">{{.Info}}</div>{{end}}
  {{if .Error}}<div class="error">{{.Error}}</div>{{end}}
  <form class="input" method="post" action="/chat">
    <input type="text" name="prompt" placeholder="Your message" autofocus autocomplete="off">
    <button type="submit">Send</button>
  </form>
</main>
</body>
</html>
`))
