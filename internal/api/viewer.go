package api

// viewerHTML is the browser preview: the MJPEG stream, the status line from
// the websocket, and rate/scale/stop controls.
const viewerHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Oculus Quest - Live View</title>
    <style>
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Ubuntu, sans-serif;
            margin: 0;
            background: #111;
            color: #eee;
        }
        header {
            display: flex;
            gap: 16px;
            align-items: center;
            padding: 10px 16px;
            background: #222;
        }
        #status {
            font-family: 'Courier New', monospace;
            flex: 1;
        }
        main {
            display: flex;
            justify-content: center;
            padding: 10px;
        }
        img {
            max-width: 100%;
            max-height: calc(100vh - 80px);
            background: #000;
        }
        input {
            width: 60px;
        }
        button {
            padding: 4px 12px;
        }
    </style>
</head>
<body>
    <header>
        <span id="status">Initializing...</span>
        <label>FPS <input id="fps" type="number" min="1" max="60" step="1"></label>
        <label>Scale <input id="scale" type="number" min="0.1" max="2" step="0.1"></label>
        <button id="apply">Apply</button>
        <button id="stop">Stop</button>
    </header>
    <main>
        <img id="view" src="/stream" alt="Quest screen">
    </main>
    <script>
        const status = document.getElementById('status');
        const fps = document.getElementById('fps');
        const scale = document.getElementById('scale');
        let primed = false;

        function show(msg) {
            const p = msg.preview;
            status.textContent = p.text + '  |  ' + msg.stats.measured_fps.toFixed(1) + ' fps measured';
            if (!primed) {
                fps.value = p.fps;
                scale.value = p.scale;
                primed = true;
            }
            if (!p.active) {
                status.textContent = 'Stopped';
            }
        }

        const ws = new WebSocket((location.protocol === 'https:' ? 'wss://' : 'ws://') + location.host + '/api/status/ws');
        ws.onmessage = (e) => show(JSON.parse(e.data));
        ws.onclose = () => { status.textContent = 'Stopped'; };

        document.getElementById('apply').onclick = () => {
            fetch('/api/control', {
                method: 'PUT',
                headers: {'Content-Type': 'application/json'},
                body: JSON.stringify({fps: parseFloat(fps.value), scale: parseFloat(scale.value)})
            });
        };
        document.getElementById('stop').onclick = () => {
            fetch('/api/stop', {method: 'POST'});
        };
    </script>
</body>
</html>`
