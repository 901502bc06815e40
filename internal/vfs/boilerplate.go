package vfs

// DefaultFileName is the file a fresh workspace starts with.
const DefaultFileName = "app.py"

const defaultPythonSource = `print("Hello, World!")

def fibonacci(n):
    if n <= 1:
        return n
    return fibonacci(n-1) + fibonacci(n-2)

for i in range(10):
    print(f"F({i}) = {fibonacci(i)}")
`

const webSpaceHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>My Web Space</title>
    <link rel="stylesheet" href="styles.css">
</head>
<body>
    <h1>Hello, Web Space!</h1>
    <p>This is a simple web page.</p>

    <script src="script.js"></script>
</body>
</html>`

const webSpaceCSS = `body {
    font-family: Arial, sans-serif;
    max-width: 800px;
    margin: 0 auto;
    padding: 20px;
    background-color: #f9f9f9;
    color: #333;
    line-height: 1.6;
}

h1 {
    color: #333;
    text-align: center;
    margin-bottom: 1rem;
}

p {
    color: #666;
    margin-bottom: 1rem;
}`

const webSpaceJS = `console.log('Web Space loaded!');

document.addEventListener('DOMContentLoaded', function() {
    console.log('DOM fully loaded');
});`

const previewLightCSS = `body {
    font-family: Arial, sans-serif;
    max-width: 800px;
    margin: 0 auto;
    padding: 20px;
    background-color: #f5f5f5;
    color: #333;
}

h1 {
    color: #333;
    text-align: center;
}

p {
    color: #666;
    line-height: 1.6;
}`

const previewDarkCSS = `body {
    font-family: Arial, sans-serif;
    max-width: 800px;
    margin: 0 auto;
    padding: 20px;
    background-color: #1a1a1a;
    color: #ffffff;
}

h1 {
    color: #ffffff;
    text-align: center;
}

p {
    color: #cccccc;
    line-height: 1.6;
}`
