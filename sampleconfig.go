package main

// ConfigFileContents holds the default hashpass.conf content, used by
// createConfigFile when writing a fresh config file for a new home
// directory. Values left commented out fall back to the compiled-in
// defaults in config.go.
const ConfigFileContents = `
[Application Options]

; Logging level for all subsystems. {trace, debug, info, warn, error, critical}
; You may also specify <subsystem>=<level>,<subsystem2>=<level>,... to set
; the log level for individual subsystems. Use 'show' to list available
; subsystems.
; debuglevel=debug

; The directory to store data such as the audit log and IP blacklist.
; datadir=

; Home directory for the application.
; homedir=

; Path to this very configuration file.
; configfile=

; Directory to log output.
; logdir=

; The listening address for the HTTP and websocket server.
; port=:8443

; Bearer token required on every /api/admin/... request. If left unset,
; a random token is generated at startup and printed to the log once.
; admintoken=

; The puzzle's starting difficulty, in required leading zero bits.
; initialdifficulty=16

; The lower bound the difficulty controller will not go below.
; mindifficulty=8

; The upper bound the difficulty controller will not exceed.
; maxdifficulty=28

; The low and high end of the target solve-time window, in seconds.
; targettimemin=30
; targettimemax=120

; Argon2 cost parameters advertised to clients and used to verify
; submissions.
; argon2timecost=2
; argon2memorykib=65536
; argon2parallelism=1

; Recommended client-side hash worker count, advertised to visitors.
; workercount=4

; Server-side hash verification worker pool size; 0 defaults to CPU
; count minus one.
; verifierworkers=0

; Self-reported hash rate ceiling, in H/s, above which a client is
; flagged overspeed in the admin plane. 0 disables the check.
; maxnoncespeed=0

; Award a best-effort invite code to the closest near-miss submission
; when a puzzle round times out with no winner.
; consolationcodes=false

; Cloudflare Turnstile credentials for the human-challenge gate ahead
; of the realtime channel. Leave turnstiletestmode on for local
; development; it accepts any non-empty token instead of calling
; Cloudflare.
; turnstilesitekey=
; turnstilesecretkey=
; turnstiletestmode=false

; Optional URL and bearer token notified, fire-and-forget, on every
; winning solve.
; webhookurl=
; webhooktoken=

; Optional 64-char hex server secret used to mint invite codes. A
; random one is generated at startup if left unset; rotating it
; invalidates every previously-minted code.
; serversecret=
`
