package pydeps

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnalyzeFindsExternalImports(t *testing.T) {
	source := `import os
import requests
import numpy as np, pandas
from flask import Flask
from collections import OrderedDict
from bs4.element import Tag

def main():
    pass
`
	got := Analyze(source)
	assert.Equal(t, []string{"bs4", "flask", "numpy", "pandas", "requests"}, got)
}

func TestAnalyzeIgnoresCommentsAndIndentedImports(t *testing.T) {
	source := `# import requests
import os

def lazy():
    import simplejson
    from django import forms
`
	assert.Empty(t, Analyze(source))
}

func TestAnalyzeIgnoresRelativeImports(t *testing.T) {
	source := `from . import sibling
from .helpers import util
`
	assert.Empty(t, Analyze(source))
}

func TestAnalyzeStdlibOnlyScript(t *testing.T) {
	source := `import os, sys, json
from pathlib import Path
import shutil
`
	assert.Empty(t, Analyze(source))
}

func TestAnalyzeSubmoduleReducedToRoot(t *testing.T) {
	got := Analyze("import requests.adapters\n")
	assert.Equal(t, []string{"requests"}, got)
}
