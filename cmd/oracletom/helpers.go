package main

import "time"

// nowFunc is replaced in tests.
var nowFunc = time.Now
