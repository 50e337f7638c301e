package plugin

// MetadataSchema is the JSON Schema for AGENT.json validation
const MetadataSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "name": {
      "type": "string",
      "description": "Agent identifier"
    },
    "class_name": {
      "type": "string",
      "minLength": 1,
      "description": "Implementation name resolved in the artifact"
    },
    "class": {
      "type": "string",
      "minLength": 1,
      "description": "Legacy spelling of class_name"
    },
    "version": {
      "type": "string",
      "pattern": "^v?\\d+\\.\\d+\\.\\d+",
      "description": "Semver version"
    },
    "requires": {
      "type": "string",
      "minLength": 1,
      "description": "Semver constraint on the host version (e.g., >=0.2.0)"
    },
    "description": {
      "type": "string"
    },
    "main": {
      "type": "string",
      "minLength": 1,
      "description": "Executable served over the plugin RPC protocol"
    },
    "capabilities": {
      "type": "array",
      "items": { "type": "string" }
    }
  }
}`
